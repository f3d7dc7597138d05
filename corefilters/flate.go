package corefilters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// decodeFlate matches the teacher's flateDecode.go: stdlib zlib for
// inflation (the teacher's own idiom is the standard library here, so no
// third-party substitute is introduced), followed by PNG/TIFF predictor
// post-processing when /DecodeParms requests it.
func decodeFlate(data []byte, params Params) ([]byte, error) {
	rc, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	p, err := parseFlateParams(params)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, p)
}

type flateParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func parseFlateParams(params Params) (flateParams, error) {
	predictor := params["Predictor"]
	switch predictor {
	case 0, 1, 2, 10, 11, 12, 13, 14, 15:
	default:
		return flateParams{}, fmt.Errorf("unexpected Predictor: %d", predictor)
	}

	colors, found := params["Colors"]
	if !found {
		colors = 1
	} else if colors == 0 {
		return flateParams{}, fmt.Errorf("Colors must be > 0, got %d", colors)
	}

	bpc, found := params["BitsPerComponent"]
	if !found {
		bpc = 8
	} else {
		switch bpc {
		case 1, 2, 4, 8, 16:
		default:
			return flateParams{}, fmt.Errorf("unexpected BitsPerComponent: %d", bpc)
		}
	}

	columns, found := params["Columns"]
	if !found {
		columns = 1
	}

	return flateParams{predictor: predictor, colors: colors, bpc: bpc, columns: columns}, nil
}

func (p flateParams) rowSize() int { return p.bpc * p.colors * p.columns / 8 }

func applyPredictor(data []byte, p flateParams) ([]byte, error) {
	if p.predictor == 0 || p.predictor == 1 {
		return data, nil
	}

	bytesPerPixel := (p.bpc*p.colors + 7) / 8
	rowSize := p.rowSize()
	if p.predictor != 2 {
		rowSize++ // PNG prediction prefixes each row with a filter-type byte
	}

	cr := make([]byte, rowSize)
	pr := make([]byte, rowSize)
	var out []byte

	r := bytes.NewReader(data)
	for {
		_, err := io.ReadFull(r, cr)
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				return nil, err
			}
			break
		}
		d, err := processRow(pr, cr, p.predictor, p.colors, bytesPerPixel)
		if err != nil {
			return nil, err
		}
		out = append(out, d...)
		pr, cr = cr, pr
	}

	if p.rowSize() != 0 && len(out)%p.rowSize() != 0 {
		return nil, fmt.Errorf("predictor postprocessing failed (%d bytes, row size %d)", len(out), p.rowSize())
	}
	return out, nil
}

func processRow(pr, cr []byte, predictor, colors, bytesPerPixel int) ([]byte, error) {
	if predictor == 2 {
		return applyTIFFHorizontalDiff(cr, colors), nil
	}

	cdat := cr[1:]
	pdat := pr[1:]
	filterType := int(cr[0])

	switch filterType {
	case 0:
		// none
	case 1:
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += cdat[i-bytesPerPixel]
		}
	case 2:
		for i, v := range pdat {
			cdat[i] += v
		}
	case 3:
		for i := 0; i < bytesPerPixel; i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bytesPerPixel]) + int(pdat[i])) / 2)
		}
	case 4:
		filterPaeth(cdat, pdat, bytesPerPixel)
	default:
		return nil, fmt.Errorf("unsupported PNG row filter type %d", filterType)
	}
	return cdat, nil
}

func applyTIFFHorizontalDiff(row []byte, colors int) []byte {
	for i := 1; i < len(row)/colors; i++ {
		for j := 0; j < colors; j++ {
			row[i*colors+j] += row[(i-1)*colors+j]
		}
	}
	return row
}

func abs32(x int32) int32 {
	m := x >> 31
	return (x ^ m) - m
}

func filterPaeth(cdat, pdat []byte, bytesPerPixel int) {
	var a, b, c, pa, pb, pc int32
	for i := 0; i < bytesPerPixel; i++ {
		a, c = 0, 0
		for j := i; j < len(cdat); j += bytesPerPixel {
			b = int32(pdat[j])
			pa = b - c
			pb = a - c
			pc = abs32(pa + pb)
			pa = abs32(pa)
			pb = abs32(pb)
			switch {
			case pa <= pb && pa <= pc:
				// a unchanged
			case pb <= pc:
				a = b
			default:
				a = c
			}
			a += int32(cdat[j])
			a &= 0xff
			cdat[j] = uint8(a)
			c = b
		}
	}
}
