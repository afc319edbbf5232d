package planning

import "strings"

// Question is one clarifying question in the interview. Answer is nil until
// the question is answered, and stays nil when it was skipped.
type Question struct {
	Text     string  `json:"text"`
	Key      string  `json:"key"`
	Required bool    `json:"required"`
	Answered bool    `json:"answered"`
	Answer   *string `json:"answer"`
}

// Skipped reports whether the question was passed over without an answer.
func (q Question) Skipped() bool {
	return q.Answered && q.Answer == nil
}

// Value returns the recorded answer, or "" when absent.
func (q Question) Value() string {
	if q.Answer == nil {
		return ""
	}
	return *q.Answer
}

func (q Question) clone() Question {
	if q.Answer != nil {
		v := *q.Answer
		q.Answer = &v
	}
	return q
}

// AnswerPair is a labelled answer handed to the planner.
type AnswerPair struct {
	Key      string `json:"key"`
	Question string `json:"question"`
	Value    string `json:"value"`
}

// interview holds the ordered questions and the cursor. Every method that
// flips Answered calls sync before returning so the cursor never drifts.
type interview struct {
	questions []Question
	cursor    int
}

// firstUnanswered returns the lowest index with Answered == false, or
// len(questions) when every question is answered or skipped.
func firstUnanswered(questions []Question) int {
	for i, q := range questions {
		if !q.Answered {
			return i
		}
	}
	return len(questions)
}

func (iv *interview) sync() {
	iv.cursor = firstUnanswered(iv.questions)
}

func (iv *interview) len() int {
	return len(iv.questions)
}

func (iv *interview) indexOf(key string) int {
	for i, q := range iv.questions {
		if q.Key == key {
			return i
		}
	}
	return -1
}

func (iv *interview) add(text, key string, required bool) error {
	if strings.TrimSpace(text) == "" {
		return validationErr("text", "question text must not be empty")
	}
	if strings.TrimSpace(key) == "" {
		return validationErr("key", "question key must not be empty")
	}
	if iv.indexOf(key) >= 0 {
		return validationErr("key", "duplicate question key %q", key)
	}
	iv.questions = append(iv.questions, Question{
		Text:     text,
		Key:      key,
		Required: required,
	})
	iv.sync()
	return nil
}

func (iv *interview) checkIndex(index int) error {
	if index < 0 || index >= len(iv.questions) {
		return &NotFoundError{Index: index, Total: len(iv.questions)}
	}
	return nil
}

func (iv *interview) answer(index int, value string) error {
	if err := iv.checkIndex(index); err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return validationErr("value", "answer must not be empty; skip optional questions instead")
	}
	v := value
	iv.questions[index].Answered = true
	iv.questions[index].Answer = &v
	iv.sync()
	return nil
}

func (iv *interview) skip(index int) error {
	if err := iv.checkIndex(index); err != nil {
		return err
	}
	q := iv.questions[index]
	if q.Required {
		return validationErr("required", "question %q is required and cannot be skipped", q.Key)
	}
	iv.questions[index].Answered = true
	iv.questions[index].Answer = nil
	iv.sync()
	return nil
}

// pendingRequired returns the keys of required questions still unanswered.
func (iv *interview) pendingRequired() []string {
	var keys []string
	for _, q := range iv.questions {
		if q.Required && !q.Answered {
			keys = append(keys, q.Key)
		}
	}
	return keys
}

// pending returns the keys of every question not yet answered or skipped.
func (iv *interview) pending() []string {
	var keys []string
	for _, q := range iv.questions {
		if !q.Answered {
			keys = append(keys, q.Key)
		}
	}
	return keys
}

func (iv *interview) snapshot() []Question {
	out := make([]Question, len(iv.questions))
	for i, q := range iv.questions {
		out[i] = q.clone()
	}
	return out
}

func (iv *interview) answers() []AnswerPair {
	var pairs []AnswerPair
	for _, q := range iv.questions {
		if q.Answered && q.Answer != nil {
			pairs = append(pairs, AnswerPair{Key: q.Key, Question: q.Text, Value: *q.Answer})
		}
	}
	return pairs
}
