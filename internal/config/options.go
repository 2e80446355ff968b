package config

const (
	OpenSSLPathOpt    = "openssl_path"
	DialectOpt        = "dialect"
	PKCS12LegacyOpt   = "pkcs12_legacy"
	WorkDirOpt        = "workdir"
	KeySizeOpt        = "key_size"
	DigestOpt         = "digest"
	CommandTimeoutOpt = "command_timeout"
	NameValidityOpt   = "name_validity"
	CNAsSANOpt        = "cn_as_san"
	IncludeStdoutOpt  = "include_stdout"
	LogFileOpt        = "log_file"
	VerboseOpt        = "verbose"

	SubjectCountryOpt      = "subject.country"
	SubjectStateOpt        = "subject.state"
	SubjectLocalityOpt     = "subject.locality"
	SubjectOrganizationOpt = "subject.organization"
	SubjectOrgUnitOpt      = "subject.org_unit"
	SubjectEmailOpt        = "subject.email"
)
