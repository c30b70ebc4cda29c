package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opencivic/sdcrs/pkg/workflow"
)

// catalogue maps template codes to message bodies. Placeholders use
// {name} syntax, matching the localization service's message format.
// In production the catalogue is fetched per locale; these are the
// en_IN defaults.
var catalogue = map[string]string{
	workflow.TemplateReportCreated:     "Your stray dog report has been submitted. Track it with ID {tracking_id}.",
	workflow.TemplateReportVerified:    "Report {tracking_id} has been verified and queued for field action.",
	workflow.TemplateReportRejected:    "Report {tracking_id} was rejected: {reason}.",
	workflow.TemplateReportDuplicate:   "Report {tracking_id} was closed as a duplicate. {remarks}.",
	workflow.TemplateReportAssigned:    "Officer {officer_name} has been assigned to report {tracking_id}.",
	workflow.TemplateOfficerAssigned:   "You have been assigned report {tracking_id}. Please start the field visit within the SLA.",
	workflow.TemplateReportCaptured:    "The dog from report {tracking_id} has been captured. Thank you for reporting.",
	workflow.TemplateUnableToLocate:    "The dog from report {tracking_id} could not be located at the reported spot.",
	workflow.TemplateReportResolved:    "Report {tracking_id} has been resolved.",
	workflow.TemplatePayoutInitiated:   "Your reward for report {tracking_id} is being processed.",
	workflow.TemplatePayoutFailed:      "The reward payment for report {tracking_id} failed. It will be retried.",
	workflow.TemplatePayoutCompleted:   "Your reward for report {tracking_id} has been paid. Reference: {utr}.",
	workflow.TemplatePayoutCapExceeded: "Report {tracking_id} is resolved. The monthly reward ceiling was reached, so no payment applies.",
}

// Render resolves a template code and substitutes its parameters.
// Unknown placeholders are left in place so missing params are visible
// in logs rather than silently blank.
func Render(templateID string, params map[string]string) (string, error) {
	body, ok := catalogue[templateID]
	if !ok {
		return "", fmt.Errorf("unknown notification template %q", templateID)
	}
	for key, value := range params {
		body = strings.ReplaceAll(body, "{"+key+"}", value)
	}
	return body, nil
}

// TemplateIDs returns the known template codes, sorted.
func TemplateIDs() []string {
	ids := make([]string, 0, len(catalogue))
	for id := range catalogue {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
