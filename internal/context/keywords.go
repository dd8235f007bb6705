package context

import "strings"

// URGENT is the exact keyword set spec §4.7 names for urgent-message
// preservation during premium compression.
var URGENT = []string{
	"emergency", "urgent", "severe", "critical", "immediate",
	"hospital", "er", "911", "chest pain", "difficulty breathing",
	"stroke", "heart attack", "bleeding", "unconscious", "seizure",
}

// MEDICATION is the exact keyword set spec §4.7 names for
// medication-message preservation.
var MEDICATION = []string{
	"medication", "medicine", "drug", "prescription", "dosage",
	"mg", "ml", "daily", "twice", "allergic", "allergy",
	"side effect", "interaction",
}

// recommendationMarkers are the AI-recommendation markers spec §4.7
// names; they only apply to assistant-authored messages.
var recommendationMarkers = []string{
	"recommend", "suggest", "should", "consider",
	"diagnosis", "assessment", "likely", "appears to be",
	"treatment", "next steps", "follow up",
}

func hasUrgentKeywords(lowerContent string) bool {
	return containsAny(lowerContent, URGENT...)
}

func hasMedicationKeywords(lowerContent string) bool {
	return containsAny(lowerContent, MEDICATION...)
}

func isAIRecommendation(m Message) bool {
	if m.Role != "assistant" {
		return false
	}
	return containsAny(strings.ToLower(m.Content), recommendationMarkers...)
}
