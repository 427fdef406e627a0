package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBangs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []bang
	}{
		{"single", "!Log hello world", []bang{{name: "log", args: []string{"hello", "world"}}}},
		{"case folded", "!SetVariable Foo 1", []bang{{name: "setvariable", args: []string{"Foo", "1"}}}},
		{"quoted", `!Log "two words" x`, []bang{{name: "log", args: []string{"two words", "x"}}}},
		{"empty quotes", `!SetVariable V ""`, []bang{{name: "setvariable", args: []string{"V", ""}}}},
		{"list", "[!Log a][!Log b c]", []bang{
			{name: "log", args: []string{"a"}},
			{name: "log", args: []string{"b", "c"}},
		}},
		{"nested brackets", "[!Log [x]]", []bang{{name: "log", args: []string{"[x]"}}}},
		{"not a bang", "Log a", nil},
		{"bare bang", "!", nil},
		{"empty", "  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseBangs(tt.input))
		})
	}
}

func TestBangQueue(t *testing.T) {
	q := &bangQueue{}
	q.push("A", "[!Log one][!Log two]")
	q.push("B", "nonsense")
	q.push("B", "!Log three")

	got := q.drain()
	assert.Len(t, got, 3)
	assert.Equal(t, "A", got[0].measure)
	assert.Equal(t, "B", got[2].measure)
	assert.Equal(t, "!log three", got[2].String())
	assert.Empty(t, q.drain())
}
