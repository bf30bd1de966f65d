package wiki

import (
	"errors"
	"fmt"
	"testing"
)

func TestDecodeRequiredFields(t *testing.T) {
	cases := map[string]string{
		"no query":     `{"batchcomplete":""}`,
		"no pageids":   `{"query":{"pages":{}}}`,
		"no pages":     `{"query":{"pageids":["1"]}}`,
		"no title":     `{"query":{"pageids":["1"],"pages":{"1":{"extract":"e","thumbnail":{"source":"s"}}}}}`,
		"no extract":   `{"query":{"pageids":["1"],"pages":{"1":{"title":"t","thumbnail":{"source":"s"}}}}}`,
		"no thumbnail": `{"query":{"pageids":["1"],"pages":{"1":{"title":"t","extract":"e"}}}}`,
		"no source":    `{"query":{"pageids":["1"],"pages":{"1":{"title":"t","extract":"e","thumbnail":{}}}}}`,
		"wrong type":   `{"query":{"pageids":"1","pages":{}}}`,
		"truncated":    `{"query":{"pageids":["1"],`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(body)); !errors.Is(err, ErrDecoding) {
				t.Fatalf("expected ErrDecoding, got %v", err)
			}
		})
	}
}

func TestDecodeBatchCompleteFlag(t *testing.T) {
	cases := map[string]bool{
		`{"batchcomplete":"","query":{"pageids":[],"pages":{}}}`:    true,
		`{"batchcomplete":true,"query":{"pageids":[],"pages":{}}}`:  true,
		`{"batchcomplete":false,"query":{"pageids":[],"pages":{}}}`: false,
		`{"query":{"pageids":[],"pages":{}}}`:                       false,
	}
	for body, want := range cases {
		resp, err := Decode([]byte(body))
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", body, err)
		}
		if resp.BatchComplete != want {
			t.Fatalf("Decode(%s): expected batch complete %t", body, want)
		}
	}
}

func TestRecordUsesFirstPageID(t *testing.T) {
	body := `{"query":{"pageids":["2","1"],"pages":{
		"1":{"pageid":1,"title":"Daisy","extract":"d","thumbnail":{"source":"d.jpg"}},
		"2":{"pageid":2,"title":"Tulip","extract":"t","thumbnail":{"source":"t.jpg"}}}}}`
	resp, err := Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	record, err := resp.Record()
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if record.Title != "Tulip" || record.ImageURL != "t.jpg" {
		t.Fatalf("expected the first page id to win, got %+v", record)
	}
}

func TestDecodeToleratesMissingPageWithoutExtract(t *testing.T) {
	body := `{"query":{"pageids":["-1"],"pages":{"-1":{"title":"Nope","invalid":"","invalidreason":"bad title"}}}}`
	resp, err := Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, err := resp.Record(); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
}

func TestKind(t *testing.T) {
	cases := map[string]error{
		"ok":        nil,
		"encoding":  fmt.Errorf("%w: x", ErrEncoding),
		"transport": fmt.Errorf("%w: %w", ErrTransport, &StatusError{StatusCode: 500}),
		"decoding":  fmt.Errorf("%w: x", ErrDecoding),
		"malformed": fmt.Errorf("%w: x", ErrMalformedResponse),
		"not_found": fmt.Errorf("%w: x", ErrPageNotFound),
		"unknown":   errors.New("other"),
	}
	for want, err := range cases {
		if got := Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}
