// Package text provides the normalizer and tokenizer shared by the builder
// and the search engine. Both must agree byte-for-byte, since shingle
// hashes are computed from tokenizer output.
package text
