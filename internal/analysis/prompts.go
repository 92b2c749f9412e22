package analysis

const systemPrompt = `You are a teaching assistant. You read academic papers and explain their key ideas to students, then write quiz questions that check understanding of those ideas.`

const strictPrompt = `Read the attached paper.

Extract between 3 and 10 key concepts. For each concept give a short title, a summary of two or three sentences, up to 3 short verbatim quotes from the paper as citations, and one sentence on why the concept matters.

Then write between 4 and 15 multiple choice questions. Each question has exactly 4 options, the zero-based index of the correct option, and the title of the concept it tests.

Respond with JSON that matches the provided schema.`

const lenientPrompt = `Read the attached paper.

Extract between 3 and 8 key concepts and write between 4 and 12 multiple choice questions about them.

Respond with a single JSON object and nothing else, in this form:
{
  "concepts": [
    {"title": "...", "summary": "...", "citations": ["quote from the paper"], "importance": "..."}
  ],
  "questions": [
    {"question": "...", "options": ["...", "...", "...", "..."], "correctAnswer": 0, "concept": "title of the concept"}
  ]
}

Every question has exactly 4 options. correctAnswer is the zero-based index of the correct option. citations holds at most 3 quotes.`
