// Package urban implements the Urban Dictionary lookup chat command.
package urban

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nb4mna/nb4mna/internal/api/nightbot"
	"github.com/nb4mna/nb4mna/internal/api/urbandictionary"
	"github.com/nb4mna/nb4mna/internal/logging"
	"github.com/nb4mna/nb4mna/internal/utils"
)

const ellipsis = "…"

// linkRegex matches the [term] cross references embedded in definitions.
var linkRegex = regexp.MustCompile(`\[(.+?)]`)

// Dictionary looks up terms.
type Dictionary interface {
	GetAutocomplete(ctx context.Context, term string) ([]string, error)
	GetTerm(ctx context.Context, term string) ([]urbandictionary.TermDefinition, error)
}

// Handler serves the urban command.
type Handler struct {
	dictionary Dictionary
}

// NewHandler creates an urban handler.
func NewHandler(dictionary Dictionary) *Handler {
	return &Handler{dictionary: dictionary}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("term") {
		utils.WritePlainText(w, http.StatusBadRequest, "missing query parameter: term")
		return
	}

	text, err := h.lookup(r.Context(), query.Get("term"))
	if err != nil {
		var apiErr *urbandictionary.APIError
		if errors.As(err, &apiErr) {
			utils.WritePlainText(w, http.StatusOK, fmt.Sprintf("Urban Dictionary API error: %s", apiErr))
			return
		}
		logging.FromContext(r.Context()).WithField("component", "urban").Errorf("Failed to look up term: %v", err)
		utils.WritePlainText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	utils.WritePlainText(w, http.StatusOK, text)
}

func (h *Handler) lookup(ctx context.Context, term string) (string, error) {
	logger := logging.FromContext(ctx).WithField("component", "urban")
	logger.Debugf("term=%q", term)

	suggestions, err := h.dictionary.GetAutocomplete(ctx, term)
	if err != nil {
		return "", err
	}
	if len(suggestions) == 0 {
		return fmt.Sprintf(`No definitions found for "%s"`, term), nil
	}
	logger.Debugf("Autocomplete: %v", suggestions)

	// The exact term is not always the first suggestion ("spam" yields
	// Sam, Samantha, Samuel, SPAM, ...), so look for it first.
	autocompleted := suggestions[0]
	for _, s := range suggestions {
		if strings.EqualFold(s, term) {
			autocompleted = s
			break
		}
	}
	if autocompleted != term {
		logger.Debugf("Autocompleted term %q to %q", term, autocompleted)
	}

	definitions, err := h.dictionary.GetTerm(ctx, autocompleted)
	if err != nil {
		return "", err
	}
	if len(definitions) == 0 {
		return fmt.Sprintf(`No definitions found for "%s" (API bug?)`, term), nil
	}

	return Format(definitions[0]), nil
}

// Format renders a definition as a single chat message of at most
// nightbot.MaxMessageLength characters.
func Format(d urbandictionary.TermDefinition) string {
	word := "**" + d.Word + ".** "
	link := " " + d.Permalink

	definition := strings.ReplaceAll(d.Definition, "\r", "")
	definition = strings.ReplaceAll(definition, "\n", " ")
	definition = linkRegex.ReplaceAllString(definition, "$1")

	maxLength := nightbot.MaxMessageLength - utf8.RuneCountInString(word) - utf8.RuneCountInString(link)
	if runes := []rune(definition); len(runes) > maxLength {
		definition = string(runes[:max(maxLength-1, 0)]) + ellipsis
	}

	return word + definition + link
}
