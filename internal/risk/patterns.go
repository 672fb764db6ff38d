package risk

import "regexp"

type tierPattern struct {
	id     string
	re     *regexp.Regexp
	reason string
}

type obfuscationPattern struct {
	id     string
	re     *regexp.Regexp
	reason string
}

var obfuscationPatterns = []obfuscationPattern{
	{
		id:     "obf.decode_pipe_shell",
		re:     regexp.MustCompile(`(base64|b64decode|xxd|openssl\s+enc)[^|;]*\|\s*(ba)?sh`),
		reason: "encoded payload piped into a shell",
	},
	{
		id:     "obf.hex_decode_exec",
		re:     regexp.MustCompile(`echo\s+[0-9a-fA-F\\x]+\s*\|\s*(xxd\s+-r|perl|python)`),
		reason: "hex payload decoded for execution",
	},
	{
		// Case-modification and transform operators only; array subscripts
		// like ${files[@]} are ordinary shell and must not match.
		id:     "obf.param_expansion",
		re:     regexp.MustCompile(`\$\{\w+(\^\^?|,,?|~~?|@[QEPAa])`),
		reason: "parameter expansion trick",
	},
	{
		id:     "obf.nested_substitution",
		re:     regexp.MustCompile(`\$\([^)]*\$\(`),
		reason: "nested command substitution",
	},
	{
		id:     "obf.nested_quoting",
		re:     regexp.MustCompile(`eval\s+["'].*["'].*["']`),
		reason: "nested quoting around eval",
	},
	{
		id:     "obf.control_chars",
		re:     regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f]"),
		reason: "raw control characters",
	},
}

func matchObfuscation(command string) (string, string, bool) {
	for _, p := range obfuscationPatterns {
		if p.re.MatchString(command) {
			return p.id, p.reason, true
		}
	}
	return "", "", false
}

// Destructive filesystem, disk, network and kernel operations.
var criticalPatterns = []tierPattern{
	{"crit.rm_root", regexp.MustCompile(`rm\s+(-[a-zA-Z]*r[a-zA-Z]*f|-[a-zA-Z]*f[a-zA-Z]*r)[a-zA-Z]*\s+(/|/\*)(\s|$)`), "recursive forced delete rooted at /"},
	{"crit.rm_system_dir", regexp.MustCompile(`rm\s+-[a-zA-Z]*rf?[a-zA-Z]*\s+/(etc|boot|usr|var|bin|sbin|lib)\b`), "recursive delete of a system directory"},
	{"crit.dd_device", regexp.MustCompile(`dd\s+[^|;]*of=/dev/(sd[a-z]|nvme|vd[a-z]|hd[a-z])`), "raw write to a block device"},
	{"crit.mkfs", regexp.MustCompile(`mkfs(\.[a-z0-9]+)?\s`), "filesystem format"},
	{"crit.block_dev_redirect", regexp.MustCompile(`>\s*/dev/(sd[a-z]|nvme|vd[a-z])`), "redirect into a block device"},
	{"crit.fork_bomb", regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\}\s*;?\s*:`), "fork bomb"},
	{"crit.shutdown", regexp.MustCompile(`(shutdown|poweroff|halt)\s+(-[a-z]+\s+)*(now|-h|0)`), "forced shutdown"},
	{"crit.reboot_force", regexp.MustCompile(`reboot\s+-f`), "forced reboot"},
	{"crit.iptables_flush", regexp.MustCompile(`iptables\s+(-F|--flush)(\s|$)`), "firewall rules flushed"},
	{"crit.overwrite_passwd", regexp.MustCompile(`>\s*/etc/(passwd|shadow|sudoers)`), "core system config overwritten"},
	{"crit.sysrq", regexp.MustCompile(`echo\s+[bcos]\s*>\s*/proc/sysrq-trigger`), "kernel sysrq trigger"},
	{"crit.chown_root", regexp.MustCompile(`chown\s+-[a-zA-Z]*R[a-zA-Z]*\s+[^ ]+\s+/(\s|$)`), "recursive ownership change of /"},
}

// Risky mutations that are recoverable but dangerous at scale.
var highPatterns = []tierPattern{
	{"high.pkg_remove", regexp.MustCompile(`(apt(-get)?|yum|dnf|apk)\s+(remove|purge|erase)\s`), "package removal"},
	{"high.user_mutation", regexp.MustCompile(`(userdel|groupdel|passwd\s+-d)\s`), "user account mutation"},
	{"high.service_stop", regexp.MustCompile(`systemctl\s+(stop|disable|mask)\s`), "service stopped or disabled"},
	{"high.docker_prune", regexp.MustCompile(`docker\s+(system|container|volume|image)\s+prune\s+.*-f|docker\s+rm\s+-f\s+\$\(`), "mass container or volume removal"},
	{"high.docker_volume_rm", regexp.MustCompile(`docker\s+volume\s+rm\s`), "docker volume removal"},
	{"high.sql_drop", regexp.MustCompile(`(?i)\b(drop\s+(table|database|schema)|truncate\s+table|delete\s+from\s+\w+\s*;?\s*$)`), "destructive data-store statement"},
	{"high.kill_all", regexp.MustCompile(`(killall|pkill)\s+-9\s`), "mass process kill"},
	{"high.crontab_clear", regexp.MustCompile(`crontab\s+-r`), "crontab cleared"},
}

// Broad changes that widen exposure rather than destroy state.
var mediumPatterns = []tierPattern{
	{"med.chmod_world", regexp.MustCompile(`chmod\s+(-[a-zA-Z]+\s+)*(777|a\+rwx)\s`), "world-writable permissions"},
	{"med.chown_broad", regexp.MustCompile(`chown\s+-R\s`), "recursive ownership change"},
	{"med.git_force", regexp.MustCompile(`git\s+push\s+.*(--force|-f)(\s|$)`), "forced git history rewrite"},
	{"med.git_reset_hard", regexp.MustCompile(`git\s+reset\s+--hard`), "hard git reset"},
	{"med.pkg_install", regexp.MustCompile(`(apt(-get)?|yum|dnf)\s+install\s+-y`), "unattended package install"},
	{"med.pip_system", regexp.MustCompile(`pip\d?\s+install\s+[^|;]*--break-system-packages`), "system-wide pip install"},
	{"med.npm_global", regexp.MustCompile(`npm\s+(install|i)\s+(-g|--global)\s`), "global npm install"},
}

type contextHeuristic struct {
	id     string
	re     *regexp.Regexp
	score  int
	reason string
}

var contextHeuristics = []contextHeuristic{
	{"ctx.chaining", regexp.MustCompile(`(;|&&|\|\|)`), 20, "command chaining"},
	{"ctx.pipe_shell", regexp.MustCompile(`\|\s*(ba|z|da)?sh(\s|$)`), 30, "pipe into a shell interpreter"},
	{"ctx.system_redirect", regexp.MustCompile(`>>?\s*/(etc|boot|sys|proc)/`), 40, "redirect into a system config path"},
	{"ctx.privileged", regexp.MustCompile(`\b(sudo|doas)\s`), 15, "elevated privilege invocation"},
}

func scoreContext(command string) (int, string, []string) {
	total := 0
	reason := ""
	best := 0
	var ids []string
	for _, h := range contextHeuristics {
		if h.re.MatchString(command) {
			total += h.score
			ids = append(ids, h.id)
			if h.score > best {
				best = h.score
				reason = h.reason
			}
		}
	}
	return total, reason, ids
}
