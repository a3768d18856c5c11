package text

// English stopword list used by the keyword vectorizer.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "about", "above", "after", "again", "against", "all", "am", "an",
		"and", "any", "are", "aren", "as", "at", "be", "because", "been",
		"before", "being", "below", "between", "both", "but", "by", "can",
		"cannot", "could", "couldn", "did", "didn", "do", "does", "doesn",
		"doing", "don", "down", "during", "each", "few", "for", "from",
		"further", "had", "hadn", "has", "hasn", "have", "haven", "having",
		"he", "her", "here", "hers", "herself", "him", "himself", "his",
		"how", "if", "in", "into", "is", "isn", "it", "its", "itself", "let",
		"may", "me", "might", "more", "most", "must", "mustn", "my", "myself",
		"no", "nor", "not", "of", "off", "on", "once", "only", "or", "other",
		"ought", "our", "ours", "ourselves", "out", "over", "own", "same",
		"shall", "shan", "she", "should", "shouldn", "so", "some", "such",
		"than", "that", "the", "their", "theirs", "them", "themselves",
		"then", "there", "these", "they", "this", "those", "through", "to",
		"too", "under", "until", "up", "upon", "very", "was", "wasn", "we",
		"were", "weren", "what", "when", "where", "which", "while", "who",
		"whom", "why", "will", "with", "won", "would", "wouldn", "you",
		"your", "yours", "yourself", "yourselves",
	} {
		stopwords[w] = struct{}{}
	}
}
