package email

import (
	"fmt"

	"practice_crm_backend/internal/practices/domain"
)

const (
	subjectFollowUpFmt       = "Following up with %s"
	subjectHighInterestFmt   = "Next steps for %s"
	subjectGentleReminderFmt = "A quick note for %s"
	subjectReEngagementFmt   = "We'd love to reconnect with %s"
	subjectIntroductionFmt   = "An introduction for %s"
)

func subjectFor(templateType string, p *domain.Practice) string {
	name := practiceName(p)
	switch templateType {
	case TemplateHighInterest:
		return fmt.Sprintf(subjectHighInterestFmt, name)
	case TemplateGentleReminder:
		return fmt.Sprintf(subjectGentleReminderFmt, name)
	case TemplateReEngagement:
		return fmt.Sprintf(subjectReEngagementFmt, name)
	case TemplateIntroduction:
		return fmt.Sprintf(subjectIntroductionFmt, name)
	default:
		return fmt.Sprintf(subjectFollowUpFmt, name)
	}
}
