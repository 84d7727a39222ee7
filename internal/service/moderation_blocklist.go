package service

// Blocklists are grouped per supported language. Terms are stored
// lowercased; matching happens on lowercased text.
var profanityBlocklists = map[string][]string{
	"turkish": {
		"amk", "amına", "amcık", "orospu", "oruspu", "piç",
		"sik", "sikerim", "siktir", "yarrak", "yarak", "göt",
		"pezevenk", "kahpe", "ibne", "gavat", "sürtük", "kaltak",
	},
	"english": {
		"fuck", "fucking", "shit", "bitch", "asshole", "bastard",
		"dick", "cunt", "whore", "slut", "motherfucker", "wanker",
	},
	"german": {
		"scheisse", "scheiße", "fotze", "hurensohn", "arschloch",
		"schlampe", "wichser", "missgeburt",
	},
	"french": {
		"putain", "merde", "salope", "connard", "connasse", "enculé",
		"encule", "pute", "salaud",
	},
	"spanish": {
		"puta", "mierda", "cabrón", "cabron", "pendejo", "gilipollas",
		"joder", "coño", "cono", "maricón", "maricon",
	},
	"arabic": {
		"sharmouta", "sharmuta", "kosomak", "kossomak", "zebi",
		"manyak", "ahbal", "kalb ibn kalb",
	},
	"russian": {
		"блять", "блядь", "сука", "хуй", "пизда", "ебать", "мудак",
		"пидор", "шлюха", "говно",
	},
}

// turkishOnlyShortTokens are profanity in Turkish but ordinary words or
// fragments elsewhere ("am" is an English verb). They match only as exact
// word-boundary tokens and only when the surrounding text reads as
// Turkish.
var turkishOnlyShortTokens = map[string]bool{
	"am": true,
	"aq": true,
	"mk": true,
	"oç": true,
	"oc": true,
}

// turkishDiacritics are characters specific enough to Turkish text that a
// single occurrence flags the content as Turkish.
var turkishDiacritics = map[rune]bool{
	'ç': true, 'Ç': true,
	'ğ': true, 'Ğ': true,
	'ı': true, 'İ': true,
	'ö': true, 'Ö': true,
	'ş': true, 'Ş': true,
	'ü': true, 'Ü': true,
}

// turkishCommonWords is the fixed common-word list behind the frequency
// heuristic: two hits or a 30% token ratio marks the text as Turkish.
var turkishCommonWords = map[string]bool{
	"bir": true, "bu": true, "şu": true, "ve": true, "veya": true,
	"çok": true, "için": true, "ama": true, "fakat": true, "ben": true,
	"sen": true, "biz": true, "siz": true, "ne": true, "evet": true,
	"hayır": true, "hayir": true, "var": true, "yok": true, "gibi": true,
	"daha": true, "ile": true, "değil": true, "degil": true, "mi": true,
	"mı": true, "mu": true, "mü": true, "da": true, "de": true,
	"cümlede": true, "merhaba": true, "tamam": true, "ders": true,
	"okul": true, "hoca": true, "öğretmen": true, "ödev": true,
}

// leetSubstitutions defeat simple digit/symbol obfuscation before the
// normalized substring pass.
var leetSubstitutions = map[rune]rune{
	'1': 'i',
	'!': 'i',
	'3': 'e',
	'4': 'a',
	'@': 'a',
	'0': 'o',
	'5': 's',
	'$': 's',
	'7': 't',
	'8': 'b',
}

// separatorRunes are collapsed away during normalization so spaced-out
// spellings ("f u c k", "f.u.c.k") still match.
var separatorRunes = map[rune]bool{
	' ': true, '\t': true, '\n': true, '\r': true,
	'.': true, ',': true, '-': true, '_': true,
	'*': true, '+': true, '~': true, '\'': true,
}
