package exc

import "strings"

// Error codes are grouped by compilation phase so tooling can map a code to
// documentation without parsing the message: 1xxx parse, 2xxx import,
// 3xxx validation, 4xxx transform, 5xxx runtime, 6xxx codegen, 7xxx macro.
const (
	CodeUnknownFatal = "HQL0000"

	CodeUnexpectedEOF       = "HQL1001"
	CodeUnexpectedToken     = "HQL1002"
	CodeUnterminatedString  = "HQL1003"
	CodeUnterminatedList    = "HQL1004"
	CodeMaxDepthExceeded    = "HQL1005"
	CodeMaxQuasiquoteDepth  = "HQL1006"
	CodeUnquoteOutsideQuasi = "HQL1007"
	CodeInvalidNumber       = "HQL1008"
	CodeInvalidTypeToken    = "HQL1009"

	CodeMalformedImport = "HQL2001"
	CodeFileNotFound    = "HQL2002"

	CodeInvalidPattern  = "HQL3001"
	CodeInvalidBinding  = "HQL3002"
	CodeInvalidArity    = "HQL3003"
	CodeInvalidForm     = "HQL3004"
	CodeDuplicateClause = "HQL3005"

	CodeTransformFailed   = "HQL4001"
	CodeRecurOutsideLoop  = "HQL4002"
	CodeUnknownLabel      = "HQL4003"
	CodeRecurArity        = "HQL4004"
	CodeBreakOutsideLabel = "HQL4005"

	CodeMacroNotFound       = "HQL7001"
	CodeMacroArity          = "HQL7002"
	CodeMacroOperandType    = "HQL7003"
	CodeMacroDivideByZero   = "HQL7004"
	CodeMacroRecursionLimit = "HQL7005"
	CodeMacroImportDenied   = "HQL7006"
	CodeMacroUnboundSymbol  = "HQL7007"
	CodeMacroBadResult      = "HQL7008"
)

func group(code string, prefix string) bool {
	return strings.HasPrefix(code, "HQL"+prefix)
}

// IsParseError reports whether a code belongs to the parse phase.
func IsParseError(e Exception) bool { return group(e.Code(), "1") }

// IsImportError reports whether a code belongs to the import phase.
func IsImportError(e Exception) bool { return group(e.Code(), "2") }

// IsValidationError reports whether a code describes a shape violation in a
// recognized construct.
func IsValidationError(e Exception) bool { return group(e.Code(), "3") }

// IsTransformError reports whether a code belongs to IR lowering.
func IsTransformError(e Exception) bool { return group(e.Code(), "4") }

// IsMacroError reports whether a code belongs to the macro system.
func IsMacroError(e Exception) bool { return group(e.Code(), "7") }

var (
	defaultNonFatal = map[string]bool{}
)
