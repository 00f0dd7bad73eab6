package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/iliyamo/lanparty/internal/payment"
	"github.com/iliyamo/lanparty/internal/repository"
	"github.com/iliyamo/lanparty/internal/settlement"
)

func TestRowLabels(t *testing.T) {
	for i, want := range map[int]string{0: "A", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ", 702: "AAA"} {
		if got := indexToRowLabel(i); got != want {
			t.Errorf("indexToRowLabel(%d) = %q, want %q", i, got, want)
		}
		if got, ok := rowLabelToIndex(want); !ok || got != i {
			t.Errorf("rowLabelToIndex(%q) = %d, %v", want, got, ok)
		}
	}
	if got, ok := rowLabelToIndex(" aa "); !ok || got != 26 {
		t.Errorf("rowLabelToIndex lower case = %d, %v", got, ok)
	}
	for _, bad := range []string{"", "A1", "-"} {
		if _, ok := rowLabelToIndex(bad); ok {
			t.Errorf("rowLabelToIndex(%q) accepted", bad)
		}
	}
}

func TestWriteErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: label", settlement.ErrValidation), http.StatusBadRequest},
		{repository.ErrGuestNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", repository.ErrEventNotFound), http.StatusNotFound},
		{settlement.ErrInvalidTransition, http.StatusConflict},
		{repository.ErrConflict, http.StatusConflict},
		{payment.ErrIncompleteAccount, http.StatusUnprocessableEntity},
		{payment.ErrUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		c, rec := newCtx(http.MethodGet, "/", "")
		if err := writeError(c, quietLogger(), tc.err); err != nil {
			t.Fatalf("writeError: %v", err)
		}
		if rec.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestFlexAmount(t *testing.T) {
	var v struct {
		A flexAmount `json:"a"`
		B flexAmount `json:"b"`
		C flexAmount `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":12.5,"b":"12,50","c":null}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != "12.5" || v.B != "12,50" || v.C != "" {
		t.Fatalf("got %q %q %q", v.A, v.B, v.C)
	}
}
