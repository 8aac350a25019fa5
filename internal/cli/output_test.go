package cli

import (
	"bytes"
	"strings"
	"testing"
)

func testOutput(jsonMode, color bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &Output{jsonMode: jsonMode, color: color, w: &out, errW: &errOut}, &out, &errOut
}

func TestOutputTable(t *testing.T) {
	o, buf, _ := testOutput(false, false)
	o.Print([]string{"ID", "NAME"}, [][]string{{"1", "demo"}}, nil)

	got := buf.String()
	for _, want := range []string{"ID", "NAME", "--", "demo"} {
		if !strings.Contains(got, want) {
			t.Errorf("вывод %q не содержит %q", got, want)
		}
	}
}

func TestOutputTableEmpty(t *testing.T) {
	o, buf, _ := testOutput(false, false)
	o.Table(executionHeaders, nil)

	if !strings.Contains(buf.String(), "no results") {
		t.Errorf("пустая таблица: %q", buf.String())
	}
}

func TestOutputJSONMode(t *testing.T) {
	o, buf, _ := testOutput(true, false)
	o.Print([]string{"ID"}, nil, map[string]string{"id": "wf-1"})

	if !strings.Contains(buf.String(), `"id": "wf-1"`) {
		t.Errorf("JSON-режим: %q", buf.String())
	}
}

func TestOutputStatus(t *testing.T) {
	plain, _, _ := testOutput(false, false)
	if got := plain.Status("FAILED"); got != "FAILED" {
		t.Errorf("без терминала статус должен выводиться как есть: %q", got)
	}

	colored, _, _ := testOutput(false, true)
	got := colored.Status("SUCCEEDED")
	if !strings.Contains(got, "SUCCEEDED") || !strings.HasSuffix(got, colorReset) {
		t.Errorf("подсвеченный статус: %q", got)
	}

	// Нетерминальные статусы без цвета даже в терминале.
	if got := colored.Status("PENDING"); got != "PENDING" {
		t.Errorf("PENDING не подсвечивается: %q", got)
	}
}

func TestOutputMessages(t *testing.T) {
	o, _, errOut := testOutput(false, false)

	o.Successf("Workflow created: %s", "wf-1")
	o.Errorf("boom: %d", 42)

	got := errOut.String()
	if !strings.Contains(got, "Workflow created: wf-1") {
		t.Errorf("stderr: %q", got)
	}
	if !strings.Contains(got, "Error: boom: 42") {
		t.Errorf("stderr: %q", got)
	}
}
