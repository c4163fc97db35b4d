package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/cheque-tally/internal/domain"
)

// DecodeCompany parses model output into issued cheques. It accepts either
// {"cheques": [...]} or a bare array. Field values that cannot be read are
// left nil so the usability filter drops the record later.
func DecodeCompany(raw string) (domain.CompanyStructured, error) {
	items, err := decodeRecords(raw, "cheques")
	if err != nil {
		return domain.CompanyStructured{}, err
	}

	out := domain.CompanyStructured{Cheques: make([]domain.IssuedCheque, 0, len(items))}
	for _, item := range items {
		out.Cheques = append(out.Cheques, domain.IssuedCheque{
			ChequeNumber: looseString(item["cheque_number"]),
			PayeeName:    looseString(item["payee_name"]),
			Amount:       looseDecimal(item["amount"]),
			IssueDate:    looseString(item["issue_date"]),
		})
	}
	return out, nil
}

// DecodeBank parses model output into cleared cheques. It accepts either
// {"cashed_cheques": [...]} or a bare array.
func DecodeBank(raw string) (domain.BankStructured, error) {
	items, err := decodeRecords(raw, "cashed_cheques")
	if err != nil {
		return domain.BankStructured{}, err
	}

	out := domain.BankStructured{CashedCheques: make([]domain.ClearedCheque, 0, len(items))}
	for _, item := range items {
		out.CashedCheques = append(out.CashedCheques, domain.ClearedCheque{
			ChequeNumber: looseString(item["cheque_number"]),
			ClearingDate: looseString(item["clearing_date"]),
			Amount:       looseDecimal(item["amount"]),
		})
	}
	return out, nil
}

func decodeRecords(raw, key string) ([]map[string]json.RawMessage, error) {
	clean := []byte(cleanModelJSON(raw))
	if len(clean) == 0 {
		return nil, fmt.Errorf("decodeRecords: empty model output")
	}

	var list []json.RawMessage
	if clean[0] == '[' {
		if err := json.Unmarshal(clean, &list); err != nil {
			return nil, fmt.Errorf("decodeRecords: unmarshal array: %w", err)
		}
	} else {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(clean, &wrapper); err != nil {
			return nil, fmt.Errorf("decodeRecords: unmarshal object: %w", err)
		}
		field, ok := wrapper[key]
		if !ok {
			return nil, fmt.Errorf("decodeRecords: missing %q", key)
		}
		if isNull(field) {
			return []map[string]json.RawMessage{}, nil
		}
		if err := json.Unmarshal(field, &list); err != nil {
			return nil, fmt.Errorf("decodeRecords: %q is not an array: %w", key, err)
		}
	}

	items := make([]map[string]json.RawMessage, 0, len(list))
	for _, elem := range list {
		var item map[string]json.RawMessage
		if err := json.Unmarshal(elem, &item); err != nil || item == nil {
			// a non-object entry becomes an all-nil record
			item = map[string]json.RawMessage{}
		}
		items = append(items, item)
	}
	return items, nil
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// looseString reads a string or number. Numbers keep their literal text so
// a cheque number like 001 is never reformatted. Empty strings become nil.
func looseString(v json.RawMessage) *string {
	if isNull(v) {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		return &s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		s = n.String()
		return &s
	}
	return nil
}

// looseDecimal reads a number, or a string such as "1,250.00" or "$ 99.5".
func looseDecimal(v json.RawMessage) *decimal.Decimal {
	if isNull(v) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if d, err := decimal.NewFromString(n.String()); err == nil {
			return &d
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	d, ok := parseAmount(s)
	if !ok {
		return nil
	}
	return &d
}

func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Decimal{}, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object or array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
