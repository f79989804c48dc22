package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jackzampolin/isbnscan/internal/batch"
	"github.com/jackzampolin/isbnscan/internal/discovery"
	"github.com/jackzampolin/isbnscan/internal/integrity"
)

func TestFindReport_WriteText(t *testing.T) {
	items := []batch.Item{
		{Path: "a.pdf", Result: &discovery.Result{Path: "a.pdf", ISBNs: []string{"9780306406157", "0306406152"}}},
		{Path: "b.txt", Result: &discovery.Result{Path: "b.txt", ISBNs: []string{}}},
		{Path: "c.bin", Err: errors.New("unreadable")},
	}

	t.Run("with paths", func(t *testing.T) {
		var buf bytes.Buffer
		r := findReport{Items: items, separator: ";"}
		if err := r.WriteText(&buf); err != nil {
			t.Fatal(err)
		}
		want := "a.pdf\t9780306406157;0306406152\nb.txt\t\n"
		if buf.String() != want {
			t.Errorf("got %q, want %q", buf.String(), want)
		}
	})

	t.Run("bare", func(t *testing.T) {
		var buf bytes.Buffer
		r := findReport{Items: items[:1], separator: ",", bare: true}
		if err := r.WriteText(&buf); err != nil {
			t.Fatal(err)
		}
		if want := "9780306406157,0306406152\n"; buf.String() != want {
			t.Errorf("got %q, want %q", buf.String(), want)
		}
	})
}

func TestValidations_WriteText(t *testing.T) {
	var buf bytes.Buffer
	v := validations{
		{Input: "978-0-306-40615-7", ISBN: "9780306406157", Valid: true},
		{Input: "0306406153", ISBN: "0306406153", Valid: false},
	}
	if err := v.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	want := "978-0-306-40615-7\tvalid\n0306406153\tinvalid\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestCheckReport_WriteText(t *testing.T) {
	var buf bytes.Buffer
	r := checkReport{
		{Path: "ok.epub"},
		{Path: "empty.pdf", Reason: integrity.ReasonEmpty},
		{Path: "bad.zip", Reason: integrity.ReasonArchiveBroken, Detail: "exit status 2"},
	}
	if err := r.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	want := "empty.pdf\t" + integrity.ReasonEmpty + "\n" +
		"bad.zip\t" + integrity.ReasonArchiveBroken + " (exit status 2)\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
