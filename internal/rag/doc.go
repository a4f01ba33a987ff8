// Package rag orchestrates the question-answering pipeline over ingested
// documents.
//
// Ingestion splits a document's pages into overlapping chunks, embeds
// them, and stores them in a per-document vector collection. Asking a
// question embeds the query, retrieves the closest chunks from that
// document's collection, assembles them with recent conversation history
// into a prompt, and sends a single generation request. Answers carry
// citations pointing back at the retrieved chunks.
package rag
