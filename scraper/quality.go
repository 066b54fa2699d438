package scraper

import "strings"

// Quality weights per field, summing to 100. A text field only counts when
// longer than 3 characters after trimming; typed fields count when present.
const (
	weightTitle         = 20
	weightDescription   = 15
	weightLastDate      = 15
	weightNotifDate     = 10
	weightTotalPosts    = 10
	weightQualification = 10
	weightSalary        = 8
	weightAgeLimit      = 7
	weightDepartment    = 5

	bonusPerExtraField = 2
	bonusCap           = 10
	highQualityScore   = 70
)

func textPresent(s string) bool {
	return len(strings.TrimSpace(s)) > 3
}

// ScoreQuality rates a record's completeness on a 0-100 scale.
func ScoreQuality(job *NormalizedJob) int {
	score := 0

	if textPresent(job.Title) {
		score += weightTitle
	}
	if textPresent(job.Description) {
		score += weightDescription
	}
	if job.LastDate != nil {
		score += weightLastDate
	}
	if job.NotificationDate != nil {
		score += weightNotifDate
	}
	if job.TotalPosts.IsPresent() {
		score += weightTotalPosts
	}
	if textPresent(job.Qualification) {
		score += weightQualification
	}
	if job.MinSalary.IsPresent() || job.MaxSalary.IsPresent() {
		score += weightSalary
	}
	if job.MinAge.IsPresent() || job.MaxAge.IsPresent() {
		score += weightAgeLimit
	}
	if textPresent(job.Department) {
		score += weightDepartment
	}

	bonus := 0
	for _, present := range []bool{
		job.Location != "",
		job.ApplicationLink != "",
		job.NotificationPDF != "",
		job.ExamDate != nil,
		job.Fee.IsPresent(),
	} {
		if present {
			bonus += bonusPerExtraField
		}
	}
	if bonus > bonusCap {
		bonus = bonusCap
	}
	score += bonus

	if score > 100 {
		score = 100
	}
	return score
}

// HighQuality reports whether a score clears the advisory quality bar.
// It never gates ingestion.
func HighQuality(score int) bool {
	return score >= highQualityScore
}
