package report

import (
	"fmt"
	"sort"
	"strconv"
	"text/template"

	"github.com/muurk/mbrsim/internal/disk"
)

type row struct {
	Key   string
	Value string
}

type section struct {
	Title string
	Color string
	Rows  []row
}

type mbrView struct {
	Sections []section
}

type region struct {
	Label    string
	Detail   string
	Color    string
	Children []region
}

type diskView struct {
	Title   string
	Regions []region
}

const (
	colorHeader   = "#003366"
	colorLogical  = "#8b0000"
	colorMBR      = "#4b5563"
	colorPrimary  = "#1e90ff"
	colorExtended = "#f59e0b"
	colorEBR      = "#b45309"
	colorFree     = "#e5e7eb"
)

var mbrTemplate = template.Must(template.New("mbr").Parse(`digraph G {
	node [shape=none, margin=0]
	mbr [label=<
<table border="0" cellborder="1" cellspacing="0" cellpadding="10" bgcolor="#f7f7f7">
{{- range .Sections}}
<tr><td bgcolor="{{.Color}}" colspan="2" align="center"><font color="white"><b>{{html .Title}}</b></font></td></tr>
{{- range .Rows}}
<tr><td bgcolor="#1e90ff" align="left"><font color="white"><b>{{html .Key}}</b></font></td><td bgcolor="#87cefa" align="left"><font color="black">{{html .Value}}</font></td></tr>
{{- end}}
{{- end}}
</table>
>];
}
`))

var diskTemplate = template.Must(template.New("disk").Parse(`digraph G {
	node [shape=none, margin=0]
	disk [label=<
<table border="1" cellborder="1" cellspacing="0" cellpadding="8">
<tr><td colspan="{{len .Regions}}" bgcolor="#003366"><font color="white"><b>{{html .Title}}</b></font></td></tr>
<tr>
{{- range .Regions}}
{{- if .Children}}
<td bgcolor="{{.Color}}"><table border="0" cellborder="1" cellspacing="0" cellpadding="6">
<tr><td colspan="{{len .Children}}"><b>{{html .Label}}</b><br/>{{html .Detail}}</td></tr>
<tr>
{{- range .Children}}
<td bgcolor="{{.Color}}"><b>{{html .Label}}</b><br/>{{html .Detail}}</td>
{{- end}}
</tr>
</table></td>
{{- else}}
<td bgcolor="{{.Color}}"><b>{{html .Label}}</b><br/>{{html .Detail}}</td>
{{- end}}
{{- end}}
</tr>
</table>
>];
}
`))

func buildMBRView(mbr disk.MBR, ebrs []disk.EBR) mbrView {
	v := mbrView{}
	v.Sections = append(v.Sections, section{
		Title: "MBR Report",
		Color: colorHeader,
		Rows: []row{
			{"mbr_size", strconv.Itoa(int(mbr.Size))},
			{"mbr_creation_date", mbr.Date()},
			{"mbr_disk_signature", strconv.Itoa(int(mbr.Signature))},
			{"mbr_fit", mbr.FitValue().String()},
		},
	})

	for _, p := range mbr.Partitions {
		if !p.Used() {
			continue
		}
		v.Sections = append(v.Sections, section{
			Title: "Partition " + p.NameString(),
			Color: colorHeader,
			Rows: []row{
				{"part_status", string(p.Status[:])},
				{"part_type", p.PartitionType().String()},
				{"part_fit", disk.Fit(p.Fit[0]).String()},
				{"part_start", strconv.Itoa(int(p.Start))},
				{"part_size", strconv.Itoa(int(p.Size))},
				{"part_name", p.NameString()},
				{"part_id", p.IDString()},
			},
		})

		if p.PartitionType() != disk.Extended {
			continue
		}
		n := 0
		for _, e := range ebrs {
			if e.Size == 0 {
				continue
			}
			n++
			v.Sections = append(v.Sections, section{
				Title: fmt.Sprintf("Logical partition %d", n),
				Color: colorLogical,
				Rows: []row{
					{"part_status", string(e.Mount[:])},
					{"part_next", strconv.Itoa(int(e.Next))},
					{"part_fit", e.FitValue().String()},
					{"part_start", strconv.Itoa(int(e.Start))},
					{"part_size", strconv.Itoa(int(e.Size))},
					{"part_name", e.NameString()},
				},
			})
		}
	}
	return v
}

func buildDiskView(mbr disk.MBR, ebrs []disk.EBR) diskView {
	total := int64(mbr.Size)
	share := func(size int32) string {
		if total <= 0 {
			return "0%"
		}
		return strconv.FormatFloat(float64(size)*100/float64(total), 'f', 2, 64) + "% of disk"
	}
	free := func(size int32) region {
		return region{Label: "Free", Detail: share(size), Color: colorFree}
	}

	used := make([]disk.Partition, 0, disk.MaxPartitions)
	for _, p := range mbr.Partitions {
		if p.Used() {
			used = append(used, p)
		}
	}
	sort.Slice(used, func(i, j int) bool { return used[i].Start < used[j].Start })

	v := diskView{Title: "Disk (" + strconv.Itoa(int(mbr.Size)) + " bytes)"}
	v.Regions = append(v.Regions, region{Label: "MBR", Detail: strconv.Itoa(int(disk.MBRSize)) + " bytes", Color: colorMBR})

	cursor := disk.MBRSize
	for _, p := range used {
		if p.Start > cursor {
			v.Regions = append(v.Regions, free(p.Start-cursor))
		}
		switch p.PartitionType() {
		case disk.Extended:
			v.Regions = append(v.Regions, region{
				Label:    "Extended " + p.NameString(),
				Detail:   share(p.Size),
				Color:    colorExtended,
				Children: extendedChildren(p, ebrs, share, free),
			})
		default:
			v.Regions = append(v.Regions, region{
				Label:  "Primary " + p.NameString(),
				Detail: share(p.Size),
				Color:  colorPrimary,
			})
		}
		cursor = max(cursor, p.End())
	}
	if mbr.Size > cursor {
		v.Regions = append(v.Regions, free(mbr.Size-cursor))
	}
	return v
}

func extendedChildren(ext disk.Partition, ebrs []disk.EBR, share func(int32) string, free func(int32) region) []region {
	var out []region
	ebr := region{Label: "EBR", Detail: strconv.Itoa(int(disk.EBRSize)) + " bytes", Color: colorEBR}

	cursor := ext.Start
	for _, e := range ebrs {
		if e.Size == 0 {
			continue
		}
		pos := e.Start - disk.EBRSize
		if pos > cursor {
			out = append(out, free(pos-cursor))
		}
		out = append(out, ebr, region{Label: "Logical " + e.NameString(), Detail: share(e.Size), Color: colorLogical})
		cursor = e.End()
	}
	if len(out) == 0 {
		// Only the empty head record.
		out = append(out, ebr)
		cursor = ext.Start + disk.EBRSize
	}
	if ext.End() > cursor {
		out = append(out, free(ext.End()-cursor))
	}
	return out
}
