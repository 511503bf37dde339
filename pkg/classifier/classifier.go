package classifier

// Match is the outcome of classifying one message.
type Match struct {
	Kind Kind

	// Groups holds the pattern's capture groups (without the full match).
	Groups []string

	// Partial is set when some rule's markers were present but no pattern
	// matched: the line looks like a known event but is malformed.
	Partial bool

	// Suspect is the first rule whose markers matched on a partial line.
	Suspect Kind
}

// Classifier applies an ordered rule table. It holds no per-document state
// and is safe for concurrent use.
type Classifier struct {
	rules []*Rule
}

// New creates a Classifier with the default rule table.
func New() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

// Rules returns the rule table in evaluation order.
func (c *Classifier) Rules() []*Rule {
	return c.rules
}

// Classify returns the kind of the first rule matching message. Lines that
// no rule matches classify as KindNone.
func (c *Classifier) Classify(message string) Match {
	var result Match

	for _, r := range c.rules {
		if !r.markersPresent(message) {
			continue
		}
		if m := r.Pattern.FindStringSubmatch(message); m != nil {
			return Match{Kind: r.Kind, Groups: m[1:]}
		}
		if !result.Partial {
			result.Partial = true
			result.Suspect = r.Kind
		}
	}

	return result
}
