package domain

import (
	"encoding/json"

	"waterledger/internal/docstore"
)

// encodeRecord round-trips a struct through JSON into a document, so the
// stored field names always match the struct tags.
func encodeRecord(v any) (docstore.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// decodeRecord is the inverse of encodeRecord. A document whose fields do
// not fit the target type fails here, which the stream layer reports as an
// absent value rather than a crash.
func decodeRecord[T any](doc docstore.Document) (T, error) {
	var out T
	raw, err := json.Marshal(doc)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
