package models

import "strings"

// Language is a programming language accepted by the judge
type Language string

const (
	LanguageJava       Language = "JAVA"
	LanguagePython     Language = "PYTHON"
	LanguageCPP        Language = "CPP"
	LanguageJavaScript Language = "JAVASCRIPT"
)

// DefaultLanguage is selected when a session starts
const DefaultLanguage = LanguageJava

// Languages lists the supported languages in display order
var Languages = []Language{LanguageJava, LanguagePython, LanguageCPP, LanguageJavaScript}

// ParseLanguage normalizes and validates a language name
func ParseLanguage(s string) (Language, bool) {
	l := Language(strings.ToUpper(strings.TrimSpace(s)))
	return l, l.Valid()
}

// Valid reports whether the language is supported
func (l Language) Valid() bool {
	for _, s := range Languages {
		if s == l {
			return true
		}
	}
	return false
}
