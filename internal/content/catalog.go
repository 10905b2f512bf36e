// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content implements the versioned page content store: whole-record
// saves with pre-overwrite history snapshots, bounded history listing, and
// restore with its own undo snapshot.
package content

// SharedPageID is the pseudo-page whose fields are visible to every page
// unless overridden by page-specific fields. It has no backing file.
const SharedPageID = "_shared"

// PageDescriptor is a static catalog entry. The catalog is fixed at deploy
// time and not editable at runtime.
type PageDescriptor struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	File  string `json:"file,omitempty"`
}

// Catalog returns the managed pages. IDs are path-derived and stable; they
// key content, metadata and history records.
func Catalog() []PageDescriptor {
	return []PageDescriptor{
		{ID: "index", Label: "Accueil", File: "index.html"},
		{ID: "qui-sommes-nous", Label: "Qui sommes-nous", File: "qui-sommes-nous.html"},
		{ID: "a-propos", Label: "A propos", File: "a-propos.html"},
		{ID: "ressources", Label: "Ressources", File: "ressources.html"},
		{ID: "entreprises", Label: "Studio IA", File: "entreprises.html"},
		{ID: "event-ia", Label: "Event IA", File: "event-ia.html"},
		{ID: "contact", Label: "Contact", File: "contact.html"},
		{ID: "merci", Label: "Merci", File: "merci.html"},
		{ID: "programmes/ai-leadership", Label: "AI Leadership Program", File: "programmes/ai-leadership.html"},
		{ID: "programmes/ai-governance", Label: "AI Governance Program", File: "programmes/ai-governance.html"},
		{ID: "programmes/sprints", Label: "Sprints", File: "programmes/sprints.html"},
		{ID: "programmes/masterclass", Label: "Masterclass", File: "programmes/masterclass.html"},
		{ID: SharedPageID, Label: "Contenu partagé (header, footer, newsletter)"},
	}
}
