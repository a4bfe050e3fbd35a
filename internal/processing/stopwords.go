package processing

// Stopword inventory: common English and French function words plus web
// noise that survives HTML stripping.

var englishStopwords = []string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an",
	"and", "any", "are", "aren", "as", "at", "be", "because", "been",
	"before", "being", "below", "between", "both", "but", "by", "can",
	"cannot", "could", "couldn", "did", "didn", "do", "does", "doesn",
	"doing", "don", "down", "during", "each", "few", "for", "from",
	"further", "had", "hadn", "has", "hasn", "have", "haven", "having",
	"he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"i", "if", "in", "into", "is", "isn", "it", "its", "itself", "just",
	"me", "more", "most", "mustn", "my", "myself", "no", "nor", "not",
	"now", "of", "off", "on", "once", "only", "or", "other", "ought",
	"our", "ours", "ourselves", "out", "over", "own", "same", "shan",
	"she", "should", "shouldn", "so", "some", "such", "than", "that",
	"the", "their", "theirs", "them", "themselves", "then", "there",
	"these", "they", "this", "those", "through", "to", "too", "under",
	"until", "up", "very", "was", "wasn", "we", "were", "weren", "what",
	"when", "where", "which", "while", "who", "whom", "why", "will",
	"with", "won", "would", "wouldn", "you", "your", "yours", "yourself",
	"yourselves",
}

var frenchStopwords = []string{
	"au", "aux", "avec", "ce", "ces", "cette", "dans", "de", "des", "du",
	"elle", "elles", "en", "et", "eux", "il", "ils", "je", "la", "le",
	"les", "leur", "leurs", "lui", "ma", "mais", "me", "mes", "moi", "mon",
	"ne", "nos", "notre", "nous", "on", "ou", "par", "pas", "pour", "qu",
	"que", "qui", "sa", "se", "ses", "son", "sur", "ta", "te", "tes",
	"toi", "ton", "tu", "un", "une", "vos", "votre", "vous", "est",
	"sont", "ete", "etre", "avoir", "fait", "faire", "plus", "tout",
	"tous", "toute", "toutes", "comme", "aussi", "bien", "meme", "sans",
	"sous", "entre", "apres", "avant", "depuis", "pendant", "chez",
	"cela", "ceci", "celui", "celle", "peut", "peu", "tres", "donc",
	"alors", "ainsi", "autre", "autres", "encore", "deja", "cet",
}

// Web noise that survives HTML stripping and URL removal.
var webNoiseStopwords = []string{
	"wa", "http", "https", "www", "com", "org", "net", "html",
}

// defaultStopwords builds the combined stopword set.
func defaultStopwords() map[string]struct{} {
	set := make(map[string]struct{}, len(englishStopwords)+len(frenchStopwords)+len(webNoiseStopwords))
	for _, lists := range [][]string{englishStopwords, frenchStopwords, webNoiseStopwords} {
		for _, w := range lists {
			set[w] = struct{}{}
		}
	}
	return set
}
