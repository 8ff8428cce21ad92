package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type adjustIntent struct {
	Delta int `json:"delta" validate:"ne=0,gte=-1000,lte=1000"`
}

type loginIntent struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

func jsonRequest(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestProperty_RequiredFieldValidationWorks(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("login intents missing a field are rejected", prop.ForAll(
		func(withUsername, withPassword bool) bool {
			body := map[string]interface{}{}
			if withUsername {
				body["username"] = "alice"
			}
			if withPassword {
				body["password"] = "secret"
			}

			var intent loginIntent
			err := DecodeAndValidate(jsonRequest(t, body), &intent)

			if withUsername && withPassword {
				return err == nil
			}
			return err != nil && len(FormatValidationErrors(err)) > 0
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_DeltaRangeValidation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("delta must be non-zero and bounded", prop.ForAll(
		func(delta int) bool {
			var intent adjustIntent
			err := DecodeAndValidate(jsonRequest(t, map[string]int{"delta": delta}), &intent)

			if delta != 0 && delta >= -1000 && delta <= 1000 {
				return err == nil && intent.Delta == delta
			}
			return err != nil
		},
		gen.IntRange(-2000, 2000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestDecodeAndValidate_RejectsUnknownFields(t *testing.T) {
	var intent adjustIntent
	err := DecodeAndValidate(jsonRequest(t, map[string]int{"delta": 1, "qty": 3}), &intent)
	if err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
	if len(FormatValidationErrors(err)) != 0 {
		t.Error("decode errors must not be reported as validation errors")
	}
}

func TestHandleDecodeError(t *testing.T) {
	t.Run("validation failure", func(t *testing.T) {
		var intent loginIntent
		err := DecodeAndValidate(jsonRequest(t, map[string]string{"username": strings.Repeat("a", 65), "password": "x"}), &intent)

		w := httptest.NewRecorder()
		HandleDecodeError(w, err)

		var response ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if response.Error.Message != "validation failed" {
			t.Errorf("message = %q, want validation failed", response.Error.Message)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("{not json"))
		var intent loginIntent
		err := DecodeAndValidate(req, &intent)

		w := httptest.NewRecorder()
		HandleDecodeError(w, err)

		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "invalid request body") {
			t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
		}
	})
}
