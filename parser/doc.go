// Package parser extracts structured data from model answers and fixture
// files.
package parser
