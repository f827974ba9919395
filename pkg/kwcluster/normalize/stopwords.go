package normalize

// DefaultStopwords returns the built-in German stopword list: articles,
// conjunctions, prepositions, and common function words. Tokens on this
// list carry no clustering signal on their own.
func DefaultStopwords() []string {
	return []string{
		"der", "die", "das", "den", "dem", "des",
		"ein", "eine", "einen", "einem", "einer", "eines",
		"und", "oder", "aber", "auch", "noch",
		"in", "im", "an", "am", "auf", "aus", "bei", "mit",
		"nach", "seit", "von", "vom", "zu", "zum", "zur",
		"für", "über", "unter", "vor", "durch", "gegen", "ohne", "um",
		"ist", "sind", "war", "als", "wie", "was", "wer", "wo", "man",
	}
}
