// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

const (
	ConfigLoadFailedId Id = iota + 1
	DeviceOpenFailedId
	NotATerminalId
	SSHStartFailedId
	StorageOpenFailedId
	StorageRestoreFailedId
	LineRejectedId
	PermissionDeniedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	// Renderer turns Markdown into terminal output.
	Renderer interface {
		Render(in string, stylePath string) (string, error)
	}

	// Issue is a known failure with a Markdown explanation of how to fix it.
	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink  // docs about this issue type
		extLinks []HttpLink  // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the message followed by a "See also" list of links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			sb.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders the issue with the named glamour style ("dark", "light",
// "notty", or a path to a JSON style).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Print the effective configuration:
~~~
$ embedcli config show
~~~

- Write a fresh default file and compare:
~~~
$ embedcli config init --path /tmp/embedcli-default.cue
~~~

- Check ` + "`EMBEDCLI_*`" + ` environment variables; they override the file.`,
		extLinks: []HttpLink{"https://cuelang.org/docs/tour/"},
	}

	deviceOpenFailedIssue = &Issue{
		id: DeviceOpenFailedId,
		mdMsg: `
# Failed to open the console device!

The serial line or terminal named by ` + "`transport.device`" + ` could not be opened.

## Things you can try:
- Check that the device exists:
~~~
$ ls -l /dev/ttyUSB0
~~~

- Make sure no other program (minicom, screen) holds it open.
- Check that your user belongs to the group that owns the device.`,
	}

	notATerminalIssue = &Issue{
		id: NotATerminalId,
		mdMsg: `
# The console device is not a terminal!

The console needs a character device that can be put in raw mode,
such as a serial port or a pseudo-terminal. Regular files and pipes
cannot be used with the device transport.

## Things you can try:
- Use the stdio transport and pipe input instead:
~~~
$ printf 'version\r' | embedcli serve --transport stdio
~~~

- Run a single line without a session:
~~~
$ embedcli exec version
~~~`,
	}

	sshStartFailedIssue = &Issue{
		id: SSHStartFailedId,
		mdMsg: `
# Failed to start the SSH console!

The SSH listener could not be started.

## Things you can try:
- Pick another port, or 0 for any free port:
~~~
$ EMBEDCLI_SSH_PORT=0 embedcli serve --transport ssh
~~~

- Check that ` + "`ssh.host_key_path`" + ` points to a writable location.`,
		extLinks: []HttpLink{"https://github.com/charmbracelet/wish"},
	}

	storageOpenFailedIssue = &Issue{
		id: StorageOpenFailedId,
		mdMsg: `
# Failed to open the settings store!

The ` + "`save`" + ` command writes network settings to the file named by
` + "`storage.path`" + `. That file could not be opened.

## Things you can try:
- Make sure the directory exists and is writable.
- A bolt database can only be opened by one process at a time;
  stop any other embedcli instance using it.
- Set ` + "`storage.backend: \"none\"`" + ` to run without persistence.`,
	}

	storageRestoreFailedIssue = &Issue{
		id: StorageRestoreFailedId,
		mdMsg: `
# Saved network settings are invalid!

The settings store holds an address that does not parse. The console
starts with empty network settings instead.

## Things you can try:
- Fix or delete the entry in the TOML file named by ` + "`storage.path`" + `.
- Enter configuration mode and run ` + "`netconfig`" + ` then ` + "`save`" + ` again.`,
	}

	lineRejectedIssue = &Issue{
		id: LineRejectedId,
		mdMsg: `
# The console rejected the line!

The line was too long for the console's line buffer, or the session
had already been halted by ` + "`reboot`" + `.

## Things you can try:
- Raise ` + "`console.line_capacity`" + ` in the configuration.
- Split the command into shorter lines.`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

embedcli could not access a file or device it needs.

## Things you can try:
- Check the file permissions:
~~~
$ ls -la /path/to/file
~~~

- For serial devices, add your user to the ` + "`dialout`" + ` (or ` + "`uucp`" + `) group.`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		deviceOpenFailedIssue.Id():     deviceOpenFailedIssue,
		notATerminalIssue.Id():         notATerminalIssue,
		sshStartFailedIssue.Id():       sshStartFailedIssue,
		storageOpenFailedIssue.Id():    storageOpenFailedIssue,
		storageRestoreFailedIssue.Id(): storageRestoreFailedIssue,
		lineRejectedIssue.Id():         lineRejectedIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
	}
)

// Values returns every known issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
