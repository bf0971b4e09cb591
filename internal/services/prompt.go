package services

import (
	"strconv"
	"strings"
)

// MCQDelimiter precedes every question in the model output and is what the
// renderer splits on.
const MCQDelimiter = "## MCQ"

const mcqPromptTemplate = `
You are an AI assistant helping the user generate multiple-choice questions (MCQs) from the text below:

Text:
{context}

Generate {num_questions} MCQs. Each should include:
- A clear question
- Four answer options labeled A, B, C, and D
- The correct answer clearly indicated at the end

Format:
` + MCQDelimiter + `
Question: [question]
A) [option A]
B) [option B]
C) [option C]
D) [option D]
Correct Answer: [correct option]
`

// BuildPrompt embeds the document text and question count into the MCQ
// instruction template. The text is inserted as-is.
func BuildPrompt(text string, numQuestions int) string {
	// The count goes in first so that placeholder-like strings inside text
	// are never substituted.
	prompt := strings.Replace(mcqPromptTemplate, "{num_questions}", strconv.Itoa(numQuestions), 1)
	return strings.Replace(prompt, "{context}", text, 1)
}
