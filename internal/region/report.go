package region

// ChangesReport is a read-only diagnostic describing how file's chunks
// differ from other's, by chunk index. Unlike FilterDiffDefragment, it
// never mutates either region.
type ChangesReport struct {
	Created  []int // live in file, not-created in other
	Deleted  []int // not-created in file, live in other
	Modified []int // live in both, timestamps and content differ (equal timestamps count as unchanged, as in CheckUnchanged)
	Touched  []int // live in both, differs only in timestamp/metadata but not content
}

// ReportDiff computes a ChangesReport of file relative to other. isChunk
// selects whether content comparison treats payloads as Minecraft chunks
// (ignoring LastUpdate) or as opaque NBT.
func (file *File) ReportDiff(other *File, isChunk bool) (ChangesReport, error) {
	var report ChangesReport
	for idx := 0; idx < headerEntries; idx++ {
		h := file.headers[idx]
		oh := other.headers[idx]
		switch {
		case h.State == Live && oh.State != Live:
			report.Created = append(report.Created, idx)
		case h.State != Live && oh.State == Live:
			report.Deleted = append(report.Deleted, idx)
		case h.State == Live && oh.State == Live:
			unchanged, err := file.CheckUnchanged(idx, other, idx, isChunk)
			if err != nil {
				return ChangesReport{}, err
			}
			if unchanged {
				if h.Timestamp != oh.Timestamp {
					report.Touched = append(report.Touched, idx)
				}
			} else {
				report.Modified = append(report.Modified, idx)
			}
		}
	}
	return report, nil
}
