package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// rowFingerprint is the canonical shape hashed to detect an already-staged
// row on resume. encoding/json emits struct fields in declaration order, so
// the fields are declared in alphabetical order of their JSON keys to
// produce sorted-key canonical JSON.
type rowFingerprint struct {
	Company   string `json:"company"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	JobID     int    `json:"job_id"`
	LastName  string `json:"last_name"`
	RowNumber int    `json:"row_number"`
}

// rowHash computes the deterministic SHA-256 fingerprint of one CSV row
// within a job, used as the idempotent-resume key (I1).
func rowHash(jobID, rowNumber int, row map[string]string) (string, error) {
	fp := rowFingerprint{
		JobID:     jobID,
		RowNumber: rowNumber,
		Email:     strings.ToLower(strings.TrimSpace(row["email"])),
		FirstName: strings.TrimSpace(row["first_name"]),
		LastName:  strings.TrimSpace(row["last_name"]),
		Company:   strings.TrimSpace(row["company"]),
	}
	canonical, err := json.Marshal(fp)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
