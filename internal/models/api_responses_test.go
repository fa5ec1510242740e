// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestSuccessEnvelope(t *testing.T) {
	t.Parallel()

	resp := Success(map[string]int{"items": 3}, "req-1")
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	s := string(data)
	for _, want := range []string{`"status":"success"`, `"request_id":"req-1"`, `"items":3`} {
		if !strings.Contains(s, want) {
			t.Errorf("response %s missing %s", s, want)
		}
	}
	if strings.Contains(s, `"error"`) {
		t.Errorf("success response should omit error: %s", s)
	}
}

func TestFailureEnvelope(t *testing.T) {
	t.Parallel()

	resp := Failure(&APIError{Code: "NOT_FOUND", Message: "unknown user"}, "")
	if resp.Status != StatusError {
		t.Errorf("Status = %q, want %q", resp.Status, StatusError)
	}
	if resp.Data != nil {
		t.Errorf("Data = %v, want nil", resp.Data)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"code":"NOT_FOUND"`) {
		t.Errorf("response %s missing error code", data)
	}
	if strings.Contains(string(data), `"request_id"`) {
		t.Errorf("empty request id should be omitted: %s", data)
	}
}
