package rules

import "secscan/internal/model"

var (
	codeTargets     = []string{string(model.KindSourceFile)}
	configTargets   = []string{string(model.KindConfigFile)}
	codeAndConfig   = []string{string(model.KindSourceFile), string(model.KindConfigFile)}
	dependencyTargs = []string{string(model.KindDependencyEntry)}
	routeTargets    = []string{string(model.KindAPIRoute)}
)

// Builtins is the signature pack every registry starts from.
func Builtins() Source {
	return Source{
		APIVersion: APIVersion,
		Name:       "builtin",
		Rules: []Spec{
			// Injection
			{
				ID:          "code-eval-injection",
				Title:       "Dynamic code evaluation with eval()",
				Pattern:     `(^|[^\w.$])eval\s*\(`,
				Targets:     codeTargets,
				Category:    string(model.CategoryInjection),
				Severity:    string(model.SeverityCritical),
				Confidence:  string(model.ConfidenceHigh),
				CWE:         "CWE-95",
				Remediation: "Remove eval(); parse data with JSON.parse or dispatch through an explicit allow-list of operations.",
			},
			{
				ID:          "code-function-constructor",
				Title:       "Code generated at runtime via the Function constructor",
				Pattern:     `\bnew\s+Function\s*\(`,
				Targets:     codeTargets,
				Category:    string(model.CategoryInjection),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-95",
				Remediation: "Replace runtime code generation with static functions.",
			},
			{
				ID:          "code-sql-concatenation",
				Title:       "SQL statement built by string concatenation or interpolation",
				Pattern:     `\b(select\s[^;\n]*\bfrom|insert\s+into|update\s+\w+\s+set|delete\s+from)\b[^;\n]*(['"\x60]\s*\+|\$\{|['"]\s*%\s*[(\w]|\.format\()`,
				Targets:     codeTargets,
				Category:    string(model.CategoryInjection),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-89",
				Remediation: "Use parameterized queries or the ORM's bound parameters.",
			},
			{
				ID:          "code-command-injection",
				Title:       "Shell command assembled from dynamic input",
				Pattern:     `\b(exec|execSync|spawn|spawnSync)\s*\([^)\n]*(\+|\$\{)|\bos\.system\s*\(|\bsubprocess\.\w+\([^)\n]*shell\s*=\s*True|\bshell_exec\s*\(`,
				Targets:     codeTargets,
				Category:    string(model.CategoryInjection),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-78",
				Remediation: "Pass arguments as an array to execFile/spawn without a shell and validate every argument.",
			},
			{
				ID:          "code-dom-xss",
				Title:       "Unsanitized HTML injected into the DOM",
				Pattern:     `\.innerHTML\s*=|\.outerHTML\s*=|dangerouslySetInnerHTML|document\.write\s*\(|\|\s*safe\b`,
				Targets:     codeTargets,
				Category:    string(model.CategoryInjection),
				Severity:    string(model.SeverityMedium),
				CWE:         "CWE-79",
				Remediation: "Render text with textContent or a templating layer that escapes output; sanitize HTML with a vetted sanitizer.",
			},

			// Sensitive data
			{
				ID:          "code-hardcoded-secret",
				Title:       "Hardcoded credential in source",
				Pattern:     `\b(password|passwd|pwd|secret|api[_-]?key|access[_-]?token|auth[_-]?token|client[_-]?secret)\b['"]?\s*[:=]\s*['"][^'"\s]{8,}['"]`,
				Targets:     codeTargets,
				Category:    string(model.CategorySensitiveData),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-798",
				Remediation: "Load credentials from the environment or a secret manager and rotate the exposed value.",
			},
			{
				ID:            "code-aws-access-key",
				Title:         "AWS access key ID",
				Pattern:       `\b(AKIA|ASIA)[0-9A-Z]{16}\b`,
				CaseSensitive: true,
				Targets:       codeAndConfig,
				Category:      string(model.CategorySensitiveData),
				Severity:      string(model.SeverityCritical),
				Confidence:    string(model.ConfidenceHigh),
				CWE:           "CWE-798",
				Remediation:   "Deactivate the key in IAM, rotate it, and load credentials from the runtime environment.",
			},
			{
				ID:            "code-private-key",
				Title:         "Private key material committed to the repository",
				Kind:          PatternContains,
				Pattern:       "PRIVATE KEY-----",
				CaseSensitive: true,
				Targets:       codeAndConfig,
				Category:      string(model.CategorySensitiveData),
				Severity:      string(model.SeverityCritical),
				Confidence:    string(model.ConfidenceHigh),
				CWE:           "CWE-321",
				Remediation:   "Remove the key from version control and history, then issue a new key pair.",
			},

			// Cryptography
			{
				ID:          "code-weak-hash",
				Title:       "Weak hash algorithm (MD5/SHA-1)",
				Pattern:     `createHash\(\s*['"](md5|sha1)['"]|hashlib\.(md5|sha1)\s*\(|\bmd5\.New\s*\(|\bsha1\.New\s*\(|\b(md5|sha1)\s*\(`,
				Targets:     codeTargets,
				Category:    string(model.CategoryCryptographic),
				Severity:    string(model.SeverityMedium),
				CWE:         "CWE-327",
				Remediation: "Use SHA-256 or stronger; for passwords use bcrypt, scrypt or argon2.",
			},
			{
				ID:          "code-insecure-random",
				Title:       "Non-cryptographic random number generator",
				Pattern:     `Math\.random\s*\(\s*\)|\brandom\.(random|randint|choice)\s*\(`,
				Targets:     codeTargets,
				Category:    string(model.CategoryCryptographic),
				Severity:    string(model.SeverityLow),
				Confidence:  string(model.ConfidenceLow),
				CWE:         "CWE-338",
				Remediation: "Use crypto.randomBytes / secrets / crypto/rand for tokens and identifiers.",
			},
			{
				ID:          "code-tls-verification-disabled",
				Title:       "TLS certificate verification disabled",
				Pattern:     `rejectUnauthorized\s*:\s*false|InsecureSkipVerify\s*:\s*true|\bverify\s*=\s*False|NODE_TLS_REJECT_UNAUTHORIZED\s*=\s*['"]?0`,
				Targets:     codeAndConfig,
				Category:    string(model.CategoryCryptographic),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-295",
				Remediation: "Keep certificate verification enabled; trust private CAs explicitly instead.",
			},

			// Authentication
			{
				ID:          "code-jwt-none-algorithm",
				Title:       "JWT accepts the 'none' algorithm",
				Pattern:     `algorithms?['"]?\s*[:=]\s*\[?\s*['"]none['"]`,
				Targets:     codeTargets,
				Category:    string(model.CategoryAuthentication),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-347",
				Remediation: "Pin the accepted signing algorithms and reject unsigned tokens.",
			},
			{
				ID:          "code-jwt-signature-unverified",
				Title:       "JWT decoded without signature verification",
				Pattern:     `verify_signature['"]?\s*:\s*False|jwt\.decode\([^)\n]*verify\s*=\s*False|jwt\.decode\(\s*\w+\s*\)`,
				Targets:     codeTargets,
				Category:    string(model.CategoryAuthentication),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-347",
				Remediation: "Use jwt.verify (or decode with verification and a key) before trusting claims.",
			},
			{
				ID:          "code-weak-secret-key",
				Title:       "Session or signing secret set to a guessable literal",
				Pattern:     `\b(secret_key|jwt_secret|session_secret|secret)\b['"]?\s*[\],:=]\s*['"](changeme|secret|default|dev|test|password|keyboard cat)['"]`,
				Targets:     codeAndConfig,
				Category:    string(model.CategoryAuthentication),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-1392",
				Remediation: "Generate a long random secret per environment and inject it at runtime.",
			},

			// Validation / configuration in code
			{
				ID:          "code-debug-mode",
				Title:       "Debug mode enabled",
				Pattern:     `\bdebug\s*=\s*True\b|\.run\([^)\n]*debug\s*=\s*True|app\.debug\s*=\s*true`,
				Targets:     codeTargets,
				Category:    string(model.CategoryConfiguration),
				Severity:    string(model.SeverityMedium),
				CWE:         "CWE-489",
				Remediation: "Drive debug mode from configuration and keep it off in production.",
			},
			{
				ID:          "code-bind-all-interfaces",
				Title:       "Server bound to all network interfaces",
				Pattern:     `host\s*=\s*['"]0\.0\.0\.0['"]|listen\(\s*[^,)\n]*,\s*['"]0\.0\.0\.0['"]`,
				Targets:     codeTargets,
				Category:    string(model.CategoryConfiguration),
				Severity:    string(model.SeverityLow),
				Confidence:  string(model.ConfidenceLow),
				CWE:         "CWE-1327",
				Remediation: "Bind to localhost behind a reverse proxy unless the service must be exposed.",
			},
			{
				ID:          "code-cors-wildcard",
				Title:       "CORS allows any origin",
				Pattern:     `Access-Control-Allow-Origin['"]?\s*[:,]\s*['"]\*['"]|\bcors\(\s*\)|origin\s*:\s*['"]\*['"]|CORS\(\s*app\s*\)`,
				Targets:     codeTargets,
				Category:    string(model.CategoryConfiguration),
				Severity:    string(model.SeverityMedium),
				CWE:         "CWE-942",
				Remediation: "Restrict allowed origins to an explicit list.",
			},
			{
				ID:          "code-unvalidated-redirect",
				Title:       "Redirect target taken directly from request input",
				Pattern:     `redirect\(\s*(req\.(query|params|body)|request\.(args|form|values))`,
				Targets:     codeTargets,
				Category:    string(model.CategoryValidation),
				Severity:    string(model.SeverityMedium),
				CWE:         "CWE-601",
				Remediation: "Only redirect to relative paths or an allow-list of hosts.",
			},

			// Obfuscation / exfiltration
			{
				ID:          "code-obfuscated-eval",
				Title:       "Decoded payload passed to an evaluator",
				Pattern:     `(eval|Function|exec)\s*\(\s*(atob|Buffer\.from|base64\.b64decode|unescape|decodeURIComponent)\s*\(`,
				Targets:     codeTargets,
				Category:    string(model.CategoryObfuscation),
				Severity:    string(model.SeverityCritical),
				Confidence:  string(model.ConfidenceHigh),
				CWE:         "CWE-506",
				Remediation: "Remove the encoded payload and audit how it entered the codebase.",
			},
			{
				ID:          "code-hex-escaped-blob",
				Title:       "Long hex-escaped string literal",
				Pattern:     `(\\x[0-9a-f]{2}){24,}`,
				Targets:     codeTargets,
				Category:    string(model.CategoryObfuscation),
				Severity:    string(model.SeverityMedium),
				Confidence:  string(model.ConfidenceLow),
				CWE:         "CWE-506",
				Remediation: "Replace escaped blobs with readable source or document their origin.",
			},
			{
				ID:          "code-data-exfiltration",
				Title:       "Browser or process secrets sent to a network call",
				Pattern:     `(fetch|axios\.(post|put|get)|navigator\.sendBeacon|requests\.post|http\.post)\s*\([^)\n]*(document\.cookie|localStorage|sessionStorage|process\.env|os\.environ)`,
				Targets:     codeTargets,
				Category:    string(model.CategoryDataExfiltration),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-200",
				Remediation: "Never forward cookies, storage or environment values to remote endpoints.",
			},

			// Configuration files
			{
				ID:            "config-plaintext-secret",
				Title:         "Plaintext secret in configuration",
				Pattern:       `(?m)^\s*["']?[A-Za-z0-9_]*(PASSWORD|SECRET|TOKEN|API_KEY|PRIVATE_KEY|password|secret|token|api_key)[A-Za-z0-9_]*["']?\s*[=:]\s*["']?[^\s"'$]{8,}`,
				CaseSensitive: true,
				Targets:       configTargets,
				Category:      string(model.CategorySensitiveData),
				Severity:      string(model.SeverityHigh),
				CWE:           "CWE-256",
				Remediation:   "Reference secrets through environment variables or a secret store instead of committing them.",
			},
			{
				ID:          "config-debug-enabled",
				Title:       "Debug flag enabled in configuration",
				Pattern:     `(?m)^\s*["']?(debug|flask_debug|app_debug)["']?\s*[=:]\s*["']?(true|1|yes|on)\b`,
				Targets:     configTargets,
				Category:    string(model.CategoryConfiguration),
				Severity:    string(model.SeverityMedium),
				CWE:         "CWE-489",
				Remediation: "Disable debug settings for deployed environments.",
			},
			{
				ID:          "config-tls-disabled",
				Title:       "TLS disabled or unverified in configuration",
				Pattern:     `(ssl|tls)[_-]?(verify|enabled|required)["']?\s*[=:]\s*["']?(false|0|no|off)\b`,
				Targets:     configTargets,
				Category:    string(model.CategoryCryptographic),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-295",
				Remediation: "Enable TLS and certificate verification for every upstream connection.",
			},
			{
				ID:          "config-default-credentials",
				Title:       "Default or trivial password in configuration",
				Pattern:     `(?m)password["']?\s*[=:]\s*["']?(admin|password|123456|changeme|root|secret)["']?\s*,?\s*$`,
				Targets:     configTargets,
				Category:    string(model.CategoryAuthentication),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-1392",
				Remediation: "Replace default credentials with unique generated values.",
			},
			{
				ID:          "config-cors-wildcard",
				Title:       "Wildcard CORS origin in configuration",
				Pattern:     `(allowed?[_-]?origins?|cors[_-]?origins?)["']?\s*[=:]\s*\[?\s*["']?\*`,
				Targets:     configTargets,
				Category:    string(model.CategoryConfiguration),
				Severity:    string(model.SeverityMedium),
				CWE:         "CWE-942",
				Remediation: "List trusted origins explicitly.",
			},
			{
				ID:            "config-container-root-user",
				Title:         "Container runs as root",
				Pattern:       `(?m)^\s*USER\s+(root|0)\s*$`,
				CaseSensitive: true,
				Targets:       configTargets,
				Category:      string(model.CategoryConfiguration),
				Severity:      string(model.SeverityMedium),
				CWE:           "CWE-250",
				Remediation:   "Create and switch to an unprivileged user in the image.",
			},
			{
				ID:            "config-unpinned-base-image",
				Title:         "Container base image not pinned",
				Pattern:       `(?m)^\s*FROM\s+[^\s:@]+(:latest)?(\s+[Aa][Ss]\s+\S+)?\s*$`,
				CaseSensitive: true,
				Targets:       configTargets,
				Category:      string(model.CategorySupplyChain),
				Severity:      string(model.SeverityLow),
				CWE:           "CWE-1357",
				Remediation:   "Pin base images to a version tag or digest.",
			},

			// Dependency entries; content is `"name": "version-spec"`.
			{
				ID:          "dep-unpinned-version",
				Title:       "Dependency version is not pinned",
				Pattern:     `:\s*"(\*|latest|x|>=?[^"]*|\^[^"]*|~[^"]*|[^"]*\.x)"`,
				Targets:     dependencyTargs,
				Category:    string(model.CategorySupplyChain),
				Severity:    string(model.SeverityLow),
				CWE:         "CWE-1357",
				Remediation: "Pin exact versions and commit the lockfile.",
			},
			{
				ID:          "dep-remote-source",
				Title:       "Dependency installed from a git URL or remote tarball",
				Pattern:     `:\s*"(git\+|git:|github:|https?://|file:)`,
				Targets:     dependencyTargs,
				Category:    string(model.CategorySupplyChain),
				Severity:    string(model.SeverityMedium),
				CWE:         "CWE-829",
				Remediation: "Depend on published, versioned packages from the registry.",
			},

			// API routes; content is the registration line plus following context.
			{
				ID:          "route-admin-unauthenticated",
				Title:       "Administrative route registered without an authentication guard",
				Pattern:     `['"\x60]/(admin|internal|manage|dashboard)\b`,
				Unless:      `auth|login_required|isAuthenticated|requireUser|authorize|passport|jwt|session|protect|guard|permission`,
				Targets:     routeTargets,
				Category:    string(model.CategoryAuthentication),
				Severity:    string(model.SeverityHigh),
				CWE:         "CWE-306",
				Remediation: "Put the route behind authentication and role checks.",
			},
			{
				ID:          "route-debug-endpoint",
				Title:       "Debug or diagnostic endpoint exposed",
				Pattern:     `['"\x60]/(debug|test|phpinfo|_profiler|actuator|console|\.env)\b`,
				Targets:     routeTargets,
				Category:    string(model.CategoryConfiguration),
				Severity:    string(model.SeverityMedium),
				CWE:         "CWE-489",
				Remediation: "Remove diagnostic endpoints from production builds.",
			},
			{
				ID:          "route-mutation-unvalidated",
				Title:       "State-changing route without visible input validation",
				Pattern:     `\.(post|put|patch)\s*\(|methods\s*=\s*\[[^\]]*(POST|PUT|PATCH)|"(POST|PUT|PATCH) /`,
				Unless:      `validat|schema|sanitiz|joi\.|zod|yup|celebrate|express-validator|check\(|body\(|validate_on_submit|is_valid\(|Decode\(`,
				Targets:     routeTargets,
				Category:    string(model.CategoryValidation),
				Severity:    string(model.SeverityMedium),
				Confidence:  string(model.ConfidenceLow),
				CWE:         "CWE-20",
				Remediation: "Validate and bound every request field before using it.",
			},
		},
	}
}
