package progress

// Stage is one independently timed and scored segment of the course.
type Stage struct {
	ID    string
	Label string
}

const (
	StageCalibration   = "calibration"
	StageCaseChallenge = "case_challenge"
	StageCardQuiz      = "card_quiz"
	StageFinalTest     = "final_test"
	StageFinalExam     = "final_exam"
)

var canonical = []Stage{
	{ID: StageCalibration, Label: "Calibration Challenge"},
	{ID: StageCaseChallenge, Label: "Henderson Case Challenge"},
	{ID: StageCardQuiz, Label: "Training Card Quiz"},
	{ID: StageFinalTest, Label: "Final Test"},
	{ID: StageFinalExam, Label: "Final Audit Exam"},
}

// BaselineStages are averaged into the improvement baseline; TerminalStage
// supplies the final score.
var BaselineStages = [2]string{StageCalibration, StageCaseChallenge}

const TerminalStage = StageFinalExam

// Stages returns the canonical stage list in course order.
func Stages() []Stage { return append([]Stage(nil), canonical...) }

func Known(id string) bool {
	_, ok := stageIndex(id)
	return ok
}

func stageIndex(id string) (int, bool) {
	for i, s := range canonical {
		if s.ID == id {
			return i, true
		}
	}
	return -1, false
}
