package raster

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadASC reads an ESRI ASCII grid. A sidecar file with the same base name
// and a ".prj" extension, when present, supplies the CRS tag; a missing
// sidecar leaves the tag empty so the caller can decide whether that is an
// error.
func ReadASC(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	headerKeys := map[string]bool{
		"ncols": true, "nrows": true,
		"xllcorner": true, "yllcorner": true,
		"cellsize": true, "nodata_value": true,
	}
	hdr := map[string]float64{}
	var words []string
	for len(hdr) < 6 && sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 || !headerKeys[strings.ToLower(fields[0])] {
			words = fields
			break
		}
		key := strings.ToLower(fields[0])
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("raster: %s: bad header line %q: %w", path, sc.Text(), err)
		}
		hdr[key] = v
	}

	for _, k := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize"} {
		if _, ok := hdr[k]; !ok {
			return nil, fmt.Errorf("raster: %s: missing header field %s", path, k)
		}
	}
	w := int(hdr["ncols"])
	h := int(hdr["nrows"])
	cell := hdr["cellsize"]
	if w <= 0 || h <= 0 || cell <= 0 {
		return nil, fmt.Errorf("raster: %s: invalid shape %dx%d cell %g", path, w, h, cell)
	}
	nodata, ok := hdr["nodata_value"]
	if !ok {
		nodata = DefaultNoData
	}

	g := &Grid{
		Width:    w,
		Height:   h,
		CellSize: cell,
		OriginX:  hdr["xllcorner"],
		OriginY:  hdr["yllcorner"] + float64(h)*cell,
		NoData:   nodata,
		Data:     make([]float64, 0, w*h),
	}

	parse := func(fields []string) error {
		for _, fv := range fields {
			v, err := strconv.ParseFloat(fv, 64)
			if err != nil {
				return fmt.Errorf("raster: %s: bad cell value %q: %w", path, fv, err)
			}
			g.Data = append(g.Data, v)
		}
		return nil
	}
	if err := parse(words); err != nil {
		return nil, err
	}
	for sc.Scan() {
		if err := parse(strings.Fields(sc.Text())); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("raster: read %s: %w", path, err)
	}
	if len(g.Data) != w*h {
		return nil, fmt.Errorf("raster: %s: got %d cells, want %d", path, len(g.Data), w*h)
	}

	g.CRS = readCRSSidecar(path)
	return g, nil
}

// WriteASC writes the grid as an ESRI ASCII grid plus a ".prj" sidecar
// carrying the CRS tag when one is set.
func WriteASC(g *Grid, path string) error {
	if err := g.validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("raster: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ncols %d\n", g.Width)
	fmt.Fprintf(w, "nrows %d\n", g.Height)
	fmt.Fprintf(w, "xllcorner %s\n", formatFloat(g.OriginX))
	fmt.Fprintf(w, "yllcorner %s\n", formatFloat(g.OriginY-float64(g.Height)*g.CellSize))
	fmt.Fprintf(w, "cellsize %s\n", formatFloat(g.CellSize))
	fmt.Fprintf(w, "nodata_value %s\n", formatFloat(g.NoData))
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if col > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(formatFloat(g.At(row, col)))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("raster: write %s: %w", path, err)
	}

	if g.CRS != "" {
		if err := os.WriteFile(sidecarPath(path), []byte(g.CRS+"\n"), 0o644); err != nil {
			return fmt.Errorf("raster: write CRS sidecar for %s: %w", path, err)
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sidecarPath(path string) string {
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		return path[:i] + ".prj"
	}
	return path + ".prj"
}

func readCRSSidecar(path string) string {
	b, err := os.ReadFile(sidecarPath(path))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
