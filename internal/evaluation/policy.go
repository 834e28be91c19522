package evaluation

// Feedback strings shown by the policy.
const (
	FeedbackCorrect  = "Excellent! That's correct!"
	FeedbackSpelling = "Check your spelling"
	FeedbackClosed   = "This answer doesn't seem related to the question. Let's review the material and try again."
	FeedbackGeneric  = "Think carefully about the question. Review the material if needed."
	revealPrefix     = "Incorrect. The correct answer is: "
)

// RevealFeedback is the message shown once the attempt budget is spent.
func RevealFeedback(expected string) string {
	return revealPrefix + expected
}

func intPtr(v int) *int { return &v }

// exhausted reports whether the current submission used the last attempt.
func exhausted(state AttemptState) bool {
	return state.AttemptsMade >= state.budget()
}

// correct resolves the state on a lexical match without consuming an attempt.
func correct(state AttemptState, match LexicalMatch) (Result, AttemptState) {
	state.Resolved = true
	return Result{
		IsCorrect:  true,
		Confidence: match.Confidence(),
		Feedback:   FeedbackCorrect,
		Method:     MethodLexical,
	}, state
}

// spellingRetry asks for a respelling. The attempt is already consumed; when it
// was the last one the answer is revealed instead.
func spellingRetry(state AttemptState, q Question) (Result, AttemptState) {
	if exhausted(state) {
		state.Resolved = true
		return Result{Feedback: RevealFeedback(q.ExpectedAnswer), Method: MethodSpelling}, state
	}
	return Result{Feedback: FeedbackSpelling, Method: MethodSpelling}, state
}

// closeQuiz ends the quiz regardless of the remaining budget.
func closeQuiz(state AttemptState) (Result, AttemptState) {
	state.Resolved = true
	return Result{
		Feedback:  FeedbackClosed,
		CloseQuiz: true,
		Method:    MethodAIUnrelated,
	}, state
}

// relatedRetry shows a progressive hint, or reveals the answer once the budget is spent.
func relatedRetry(state AttemptState, q Question, explanation string, degraded bool) (Result, AttemptState) {
	if exhausted(state) {
		state.Resolved = true
		return Result{
			Feedback: RevealFeedback(q.ExpectedAnswer),
			Method:   MethodAIRelated,
			Degraded: degraded,
		}, state
	}

	level := state.AttemptsMade - 1
	state.HintsShown = append(state.HintsShown, level)

	feedback := explanation
	if feedback == "" {
		feedback = predefinedHint(q, level)
	}

	return Result{
		Feedback:  feedback,
		HintLevel: intPtr(level),
		Method:    MethodAIRelated,
		Degraded:  degraded,
	}, state
}

func predefinedHint(q Question, level int) string {
	if level >= 0 && level < len(q.Hints) && q.Hints[level] != "" {
		return q.Hints[level]
	}
	return FeedbackGeneric
}
