// Package analyzer parses and runs mbrsim scripts.
//
// A script is plain text, one command per line:
//
//	mkdisk -size=5 -unit=M -fit=WF -path=/tmp/disks/a.mia
//	fdisk -size=1 -path=/tmp/disks/a.mia -name=Part1
//	mount -path=/tmp/disks/a.mia -name=part1
//	rep -name=mbr -path=/tmp/reports/mbr.png -id=491a
//
// Lines starting with # are comments and are echoed back. Parameters are
// -key=value pairs; values containing spaces are quoted. Command names,
// parameter keys and the values of fit, unit, type, name and id are
// case-insensitive. Paths are used as written.
//
// Every line produces one Response. A failing line becomes an error
// response and the script carries on. Join turns a run's responses into the
// text shown in the output panel.
package analyzer
