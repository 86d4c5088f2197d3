package constant

const (
	ChatRoleUser  = "user"
	ChatRoleModel = "model"

	// Verification status carried on a persisted answer turn.
	VerificationUnverified = "unverified"
	VerificationVerified   = "verified"
	VerificationFlagged    = "flagged"

	// VerificationTask lifecycle.
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"

	// Delivery channel event kinds.
	EventProgress = "progress"
	EventResponse = "response"
	EventError    = "error"
)

// ClassifyPromptV1 constrains the model to a single category token.
const ClassifyPromptV1 = `You are a question classifier for a university admissions chatbot.
Classify the question into exactly one category:

- simple_admission: a single factual admissions question (tuition for one major, one deadline, one requirement)
- complex_admission: multi-part or comparative admissions questions (comparing majors, combined tuition + scholarship + dorm questions)
- off_topic: greetings, small talk, or anything unrelated to admissions
- inappropriate: offensive, harmful, or abusive content

Answer with ONLY the category token, nothing else.

Question: %s`

// AnswerPromptV1 grounds the answer in retrieved admissions context.
const AnswerPromptV1 = `You are an admissions assistant for prospective students.
Answer the question using ONLY the context below. If the context does not
cover the question, say so briefly instead of guessing. Keep the answer
concise (2-5 sentences) and cite the document title when relevant.

CONTEXT:
%s

QUESTION: %s`

// SubQueryPromptV1 derives a gap-filling enrichment query from what has
// already been retrieved.
const SubQueryPromptV1 = `You are refining retrieval for an admissions question.
Original question: %s

Already retrieved (titles):
%s

Write ONE short search query that covers an aspect of the question the
retrieved documents do not answer yet. If nothing is missing, answer with
the single word NONE. Output only the query.`

// VerifyPromptV1 asks for a strict supported/unsupported verdict.
const VerifyPromptV1 = `You are verifying an admissions chatbot answer against its source context.

QUESTION: %s

ANSWER: %s

CONTEXT:
%s

Is every factual claim in the answer supported by the context?
Reply with exactly one word: SUPPORTED or UNSUPPORTED.`

// OffTopicReplyV1 answers greetings and small talk without retrieval.
const OffTopicReplyV1 = "Hi! I'm the admissions assistant - I can help with tuition, deadlines, requirements, scholarships, and campus housing. What would you like to know?"

// InappropriateReplyV1 declines abusive or harmful content.
const InappropriateReplyV1 = "I can't help with that. If you have a question about admissions, tuition, or campus life, I'm happy to assist."

// FallbackAnswerV1 is returned when answer generation fails outright. The
// turn is still persisted so it can be retried or escalated.
const FallbackAnswerV1 = "Sorry, I ran into a problem while preparing your answer. Please try asking again in a moment."

// UnverifiedNoticeV1 is appended when a pre-response verification fails and
// regeneration still cannot be confirmed against the context.
const UnverifiedNoticeV1 = "\n\n(Note: I could not fully confirm this against our admissions documents - please double-check with the admissions office.)"
