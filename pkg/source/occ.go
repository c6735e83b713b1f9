package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/repradar/pkg/bank"
)

const occSearchURL = "https://apps.occ.gov/EASearch/api/EnforcementActions/Search"

// severityByType ranks enforcement action types 1-5. Matching is by
// case-insensitive substring, first entry wins.
var severityByType = []struct {
	actionType string
	severity   int
}{
	{"Cease and Desist Order", 5},
	{"Consent Order", 4},
	{"Civil Money Penalty", 4},
	{"Formal Agreement", 3},
	{"Prompt Corrective Action", 5},
	{"Removal/Prohibition", 5},
	{"Safety and Soundness Order", 4},
	{"Change in Bank Control", 2},
	{"Capital Directive", 3},
	{"Memorandum of Understanding", 2},
}

var (
	penaltyPattern    = regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d+)?(?:\s*(?:million|billion))?`)
	nonNumericPattern = regexp.MustCompile(`[^\d.]`)
)

// OCC collects enforcement actions from the OCC public search API.
type OCC struct {
	client   *http.Client
	daysBack int
	now      func() time.Time
}

// NewOCC creates an OCC enforcement action collector.
func NewOCC(daysBack int) *OCC {
	if daysBack <= 0 {
		daysBack = 365
	}
	return &OCC{
		client:   &http.Client{Timeout: 30 * time.Second},
		daysBack: daysBack,
		now:      time.Now,
	}
}

func (o *OCC) Name() Kind { return KindOCC }

// Collect searches the OCC database under each of the bank's name
// variants. A failed search for one variant is skipped so the others
// still land; the error surfaces only when every variant failed.
func (o *OCC) Collect(ctx context.Context, bk bank.Bank) (Batch, error) {
	var batch Batch
	seen := make(map[string]bool)
	var lastErr error

	for _, name := range bk.Aliases() {
		actions, err := o.search(ctx, name)
		if err != nil {
			lastErr = err
			continue
		}
		for _, raw := range actions {
			action, ok := o.toAction(raw, bk.ID)
			if !ok || seen[action.ActionID] {
				continue
			}
			seen[action.ActionID] = true
			batch.Actions = append(batch.Actions, action)
		}
	}

	if len(batch.Actions) == 0 && lastErr != nil {
		return Batch{}, lastErr
	}
	return batch, nil
}

// occAction mirrors the search response. The endpoint is not versioned
// and field names drift, so the common variants are all declared.
type occAction struct {
	ID          flexID `json:"id"`
	ActionID    flexID `json:"actionId"`
	ActionType  string `json:"actionType"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Title       string `json:"title"`
	ActionDate  string `json:"actionDate"`
	Date        string `json:"date"`
	Agency      string `json:"agency"`
}

func (o *OCC) search(ctx context.Context, name string) ([]occAction, error) {
	to := o.now().UTC()
	from := to.AddDate(0, 0, -o.daysBack)

	payload, _ := json.Marshal(map[string]string{
		"bankName": name,
		"fromDate": from.Format("2006-01-02"),
		"toDate":   to.Format("2006-01-02"),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, occSearchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create occ request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search occ actions for %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("occ status %d for %s", resp.StatusCode, name)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read occ response: %w", err)
	}

	// The endpoint returns either a bare array or an object wrapping it.
	var actions []occAction
	if err := json.Unmarshal(body, &actions); err == nil {
		return actions, nil
	}
	var wrapped struct {
		Results []occAction `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode occ response: %w", err)
	}
	return wrapped.Results, nil
}

func (o *OCC) toAction(raw occAction, bankID int64) (EnforcementAction, bool) {
	id := string(raw.ID)
	if id == "" {
		id = string(raw.ActionID)
	}
	if id == "" {
		return EnforcementAction{}, false
	}

	actionType := raw.ActionType
	if actionType == "" {
		actionType = raw.Type
	}
	if actionType == "" {
		actionType = "Unknown"
	}

	description := raw.Description
	if description == "" {
		description = raw.Title
	}

	dateStr := raw.ActionDate
	if dateStr == "" {
		dateStr = raw.Date
	}
	actionDate := dayOf(o.now())
	if len(dateStr) >= 10 {
		if d, err := time.Parse("2006-01-02", dateStr[:10]); err == nil {
			actionDate = d
		}
	}

	agency := raw.Agency
	if agency == "" {
		agency = "OCC"
	}

	return EnforcementAction{
		ActionID:      id,
		BankID:        bankID,
		Agency:        agency,
		ActionDate:    actionDate,
		ActionType:    actionType,
		Description:   description,
		PenaltyAmount: extractPenaltyAmount(description),
		Severity:      determineSeverity(actionType),
	}, true
}

func determineSeverity(actionType string) int {
	lower := strings.ToLower(actionType)
	for _, entry := range severityByType {
		if strings.Contains(lower, strings.ToLower(entry.actionType)) {
			return entry.severity
		}
	}
	return 2
}

// classifyActionType finds a known action type named in free text, for
// feeds that only carry a headline.
func classifyActionType(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range severityByType {
		if strings.Contains(lower, strings.ToLower(entry.actionType)) {
			return entry.actionType
		}
	}
	return "Press Release"
}

// extractPenaltyAmount pulls a dollar figure out of free text, scaling
// million/billion suffixes. Returns nil when no amount is present.
func extractPenaltyAmount(description string) *float64 {
	match := penaltyPattern.FindString(description)
	if match == "" {
		return nil
	}

	amount, err := strconv.ParseFloat(nonNumericPattern.ReplaceAllString(match, ""), 64)
	if err != nil {
		return nil
	}

	lower := strings.ToLower(match)
	if strings.Contains(lower, "billion") {
		amount *= 1_000_000_000
	} else if strings.Contains(lower, "million") {
		amount *= 1_000_000
	}
	return &amount
}
