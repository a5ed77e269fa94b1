package logscan

import "regexp"

// Indicator is a strong failure-indicator pattern. Order matters only for
// reporting which rule matched; the scan itself stops at the first line that
// matches any indicator.
type Indicator struct {
	Name    string
	Pattern *regexp.Regexp
}

// Indicators is the ordered table of patterns strongly correlated with the
// root-cause line of a build log.
var Indicators = []Indicator{
	{Name: "config_missing", Pattern: regexp.MustCompile(`(?i)(could not|couldn't|unable to|failed to) (find|locate|read|detect) .*wrangler\.(toml|jsonc?)`)},
	{Name: "config_missing", Pattern: regexp.MustCompile(`(?i)missing (a )?wrangler (configuration|config)`)},
	{Name: "entry_point_missing", Pattern: regexp.MustCompile(`(?i)(missing entry-?point|entry-?point .*(not found|does not exist)|no entry-?point)`)},
	{Name: "module_not_found", Pattern: regexp.MustCompile(`(?i)(cannot find module|module not found|could not resolve ["']?\S)`)},
	{Name: "package_manager", Pattern: regexp.MustCompile(`(npm ERR!|ERR_PNPM_\w+|error Command failed|YN0001)`)},
	{Name: "command_failed", Pattern: regexp.MustCompile(`(?i)command failed with exit code \d+`)},
	{Name: "error_banner", Pattern: regexp.MustCompile(`(?i)✘\s*\[error\]`)},
	{Name: "error_prefix", Pattern: regexp.MustCompile(`(?i)(^|[\s\[])(error|failed)\]?:\s*\S`)},
}

// Hint maps a substring pattern of an extracted snippet to a remediation tip.
type Hint struct {
	Name    string
	Pattern *regexp.Regexp
	Text    string
}

// Hints is the ordered remediation table consulted by Extractor.Hint.
var Hints = []Hint{
	{
		Name:    "missing_config",
		Pattern: regexp.MustCompile(`(?i)wrangler\.(toml|jsonc?)|wrangler (configuration|config)`),
		Text:    "Add a wrangler.toml or wrangler.jsonc to the project root, or set the root directory in the build settings.",
	},
	{
		Name:    "missing_build_output",
		Pattern: regexp.MustCompile(`(?i)(entry-?point|output directory|no such file or directory|dist/\S* (not found|does not exist))`),
		Text:    "Check that the build command writes its output where the deploy step expects it, and that main points at an existing file.",
	},
	{
		Name:    "dependency_issue",
		Pattern: regexp.MustCompile(`(?i)(cannot find module|module not found|could not resolve|npm err!|err_pnpm|lockfile|peer dep)`),
		Text:    "Verify the dependency is declared in package.json and that the lockfile is committed.",
	},
	{
		Name:    "command_failed",
		Pattern: regexp.MustCompile(`(?i)(command failed|exit code|exited with code)`),
		Text:    "Run the build command locally to reproduce the failure.",
	},
}

var (
	// stackFramePattern matches indented "at ..." frames (JS/Java style traces).
	stackFramePattern = regexp.MustCompile(`^\s+at\s`)

	// ansiPattern matches ANSI SGR escape sequences.
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
)
