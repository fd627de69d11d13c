package lifecycle

// Language pairs a locale code with its display name, mirroring the
// translation catalogs the application layer ships.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var languages = []Language{
	{"ar_SY", "Arabic / الْعَرَبيّة"},
	{"bg_BG", "Bulgarian / български език"},
	{"ca_ES", "Catalan / Català"},
	{"cs_CZ", "Czech / Čeština"},
	{"da_DK", "Danish / Dansk"},
	{"de_DE", "German / Deutsch"},
	{"el_GR", "Greek / Ελληνικά"},
	{"en_GB", "English (UK)"},
	{"en_US", "English (US)"},
	{"es_ES", "Spanish / Español"},
	{"et_EE", "Estonian / Eesti keel"},
	{"fi_FI", "Finnish / Suomi"},
	{"fr_FR", "French / Français"},
	{"hr_HR", "Croatian / hrvatski jezik"},
	{"hu_HU", "Hungarian / Magyar"},
	{"id_ID", "Indonesian / Bahasa Indonesia"},
	{"it_IT", "Italian / Italiano"},
	{"ja_JP", "Japanese / 日本語"},
	{"ko_KR", "Korean / 한국어"},
	{"lt_LT", "Lithuanian / Lietuvių kalba"},
	{"nb_NO", "Norwegian Bokmål / Norsk bokmål"},
	{"nl_NL", "Dutch / Nederlands"},
	{"pl_PL", "Polish / Język polski"},
	{"pt_BR", "Portuguese (BR) / Português (BR)"},
	{"pt_PT", "Portuguese / Português"},
	{"ro_RO", "Romanian / română"},
	{"ru_RU", "Russian / русский язык"},
	{"sl_SI", "Slovenian / slovenščina"},
	{"sv_SE", "Swedish / svenska"},
	{"th_TH", "Thai / ภาษาไทย"},
	{"tr_TR", "Turkish / Türkçe"},
	{"uk_UA", "Ukrainian / українська"},
	{"vi_VN", "Vietnamese / Tiếng Việt"},
	{"zh_CN", "Chinese (CN) / 简体中文"},
	{"zh_TW", "Chinese (TW) / 正體字"},
}

// ListLanguages enumerates the locales available for new databases.
func (s *Service) ListLanguages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}
