package rag

import "encoding/json"

// Page is one extracted page of a document: its plain text plus any
// structured side-data (tables, form fields) the extraction service
// produced. Side-data is stored with the document and passed through
// untouched; chunking and retrieval read only Text.
type Page struct {
	Text     string          `json:"text"`
	SideData json.RawMessage `json:"side_data,omitempty"`
}

// UnmarshalJSON accepts either a bare JSON string (the page text) or a
// full page object. Clients that have no side-data can send plain
// string arrays.
func (p *Page) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Text)
	}
	type page Page
	return json.Unmarshal(data, (*page)(p))
}

// TextPages builds Pages from plain text, one per argument.
func TextPages(texts ...string) []Page {
	pages := make([]Page, len(texts))
	for i, text := range texts {
		pages[i] = Page{Text: text}
	}
	return pages
}
