package service

import (
	"math"

	"github.com/arkan-dev/bootcamp-api/internal/models"
)

// Scoring thresholds for weekly progress.
const (
	// VideoAwardThreshold is the watched percentage at which the video
	// point budget is granted. The grant is sticky: a later report with a
	// lower percentage never revokes it.
	VideoAwardThreshold = 90

	// AssignmentPassScore is the minimum review score (out of 100) for an
	// assignment to count towards week completion.
	AssignmentPassScore = 60

	// QuizPassRatio is the minimum fraction of correct answers for a quiz
	// to count towards week completion.
	QuizPassRatio = 0.6

	// OnTimeBonusRate is applied to the awarded assignment points when the
	// submission arrived before the deadline.
	OnTimeBonusRate = 0.10
)

// AssignmentAward converts a review score (0-100) into points against the
// week's assignment budget.
func AssignmentAward(score, budget int) int {
	return int(math.Round(float64(score) / 100 * float64(budget)))
}

// OnTimeBonus is the extra credit layered on top of an on-time assignment
// award.
func OnTimeBonus(awarded int) int {
	return int(math.Round(float64(awarded) * OnTimeBonusRate))
}

// GradeQuiz scores submitted answer indexes against the week's questions.
// Answers beyond the question list are ignored, missing answers score zero.
func GradeQuiz(answers []int, questions []models.Question) int {
	score := 0
	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		if answers[i] == q.CorrectAnswer {
			score += q.PointsOrDefault()
		}
	}
	return score
}

// RescaleQuizScore maps a raw quiz score onto the week's assignment point
// budget. A zero question count yields zero rather than dividing.
func RescaleQuizScore(score, totalQuestions, budget int) int {
	if totalQuestions <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(totalQuestions) * float64(budget)))
}

// QuizRatio is the fraction of the quiz answered correctly.
func QuizRatio(score, totalQuestions int) float64 {
	if totalQuestions <= 0 {
		return 0
	}
	return float64(score) / float64(totalQuestions)
}

func assignmentPassed(sub *models.Submission) bool {
	if sub == nil || sub.Kind != models.KindAssignment || sub.Score == nil {
		return false
	}
	return *sub.Score >= AssignmentPassScore
}

func quizPassed(sub *models.Submission) bool {
	if sub == nil || sub.Kind != models.KindQuiz || sub.Score == nil {
		return false
	}
	return QuizRatio(*sub.Score, sub.TotalQuestions) >= QuizPassRatio
}

// WeekCompleted reports whether a week counts as done: the video must be
// watched and at least one of the graded tracks must pass.
func WeekCompleted(videoWatched bool, assignment, quiz *models.Submission) bool {
	if !videoWatched {
		return false
	}
	return assignmentPassed(assignment) || quizPassed(quiz)
}

// PointsPercentage guards the zero-possible case so empty phases never divide
// by zero.
func PointsPercentage(earned, possible int) float64 {
	if possible <= 0 {
		return 0
	}
	return float64(earned) / float64(possible) * 100
}
