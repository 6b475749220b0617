package validators

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

type sample struct {
	Text string `validate:"required,min=1,max=10"`
}

func TestValidatePasses(t *testing.T) {
	v := NewValidator()
	if err := v.Validate(&sample{Text: "ok"}); err != nil {
		t.Errorf("expected valid struct to pass, got %v", err)
	}
}

func TestValidateFails(t *testing.T) {
	tests := []struct {
		name  string
		input sample
	}{
		{"empty", sample{}},
		{"too long", sample{Text: "this is way too long"}},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.input)
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
				t.Errorf("expected 400 HTTPError, got %v", err)
			}
		})
	}
}
