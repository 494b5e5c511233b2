// Package extract derives wine and food line items from raw event
// descriptions. It is deterministic and does no network I/O: the labeling
// oracle is a separate concern.
package extract

import (
	"html"
	"regexp"
	"strings"
)

type section int

const (
	sectionNone section = iota
	sectionWine
	sectionFood
)

// Headers are short lines announcing a list. Longer lines containing these
// words are treated as prose, not headers.
const headerMaxLen = 60

var wineKeywords = []string{
	"vinuri", "vinul", "vin alb", "vin rosu", "vin roșu", "vin rose", "vin rozé",
	"wines", "wine list", "degustare de vin", "wine pairing", "lista de vinuri",
}

var foodKeywords = []string{
	"meniu", "menu", "mancare", "mâncare", "gustari", "gustări", "platou",
	"preparate", "food pairing", "aperitive", "fel principal", "desert",
}

// Stop markers end a list: pricing, reservation and footer boilerplate.
var stopMarkers = []string{
	"pret", "preț", "price", "€", "$",
	"rezerv", "reservation", "bilet", "ticket",
	"tel:", "telefon", "contact", "www.", "http", "@",
	"program:", "adresa", "locatie", "locație",
}

// Currency words only stop a section as standalone words, so wine names
// like "Liqueur" or "Fleur" pass through.
var currencyWord = regexp.MustCompile(`\b(lei|ron|eur|euro)\b`)

var fluffPrefixes = []string{
	"va asteptam", "vă așteptăm", "join us", "don't miss", "nu rata",
	"experienta", "experiența", "descopera", "descoperă",
}

var (
	lineBreakTags = regexp.MustCompile(`(?i)<\s*(br\s*/?|/p|/div|/li|/h[1-6]|/tr)\s*>`)
	anyTag        = regexp.MustCompile(`<[^>]*>`)
	spaces        = regexp.MustCompile(`\s+`)
	bulletPrefix  = regexp.MustCompile(`^([-•*–—]+\s*|\d+[.)]\s+)`)
	priceToken    = regexp.MustCompile(`^\d+([.,]\d+)?\s*(lei|ron|eur|€|\$)?$`)
)

// Lists scans a description and returns the wine and food items it
// advertises. Section headers and prose are discarded; only list lines
// between a header and the next stop marker survive.
func Lists(description string) (wines, foods []string) {
	state := sectionNone

	for _, line := range normalizeLines(description) {
		lower := strings.ToLower(line)

		if len(line) <= headerMaxLen {
			if containsAny(lower, wineKeywords) {
				state = sectionWine
				continue
			}
			if containsAny(lower, foodKeywords) {
				state = sectionFood
				continue
			}
		}

		if state == sectionNone {
			continue
		}

		if isStopLine(line, lower) {
			state = sectionNone
			continue
		}

		item, ok := cleanItem(line, lower)
		if !ok {
			continue
		}
		switch state {
		case sectionWine:
			wines = append(wines, item)
		case sectionFood:
			foods = append(foods, item)
		}
	}
	return wines, foods
}

// normalizeLines flattens HTML into trimmed, non-empty text lines.
func normalizeLines(description string) []string {
	text := lineBreakTags.ReplaceAllString(description, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = spaces.ReplaceAllString(strings.TrimSpace(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func isStopLine(line, lower string) bool {
	if containsAny(lower, stopMarkers) || currencyWord.MatchString(lower) {
		return true
	}
	// A long line ending in sentence punctuation is prose, not a list item.
	if len(line) > 80 && strings.ContainsAny(line[len(line)-1:], ".!?") {
		return true
	}
	return false
}

func cleanItem(line, lower string) (string, bool) {
	if len(line) < 3 {
		return "", false
	}
	for _, prefix := range fluffPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}
	if priceToken.MatchString(lower) {
		return "", false
	}
	item := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
	if len(item) < 3 {
		return "", false
	}
	return item, true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
