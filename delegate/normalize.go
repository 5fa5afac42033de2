package delegate

import (
	"strings"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// DefaultConfidence is assigned to items that carry no confidence.
const DefaultConfidence = 0.5

var (
	listKeys       = []string{"foods", "detected_foods", "detections", "items", "labels"}
	nameKeys       = []string{"name", "label", "food", "class"}
	confidenceKeys = []string{"confidence", "score", "probability"}
	portionKeys    = []string{"portion", "estimated_portion", "portion_size"}
	bboxKeys       = []string{"bbox", "bounding_box", "box"}
)

// Normalize converts a heterogeneous detection payload into candidates.
//
// The payload is either a JSON array of items or an object holding the items
// under one of foods, detected_foods, detections, items or labels. Items
// without a name are skipped. Confidences above 1 are read as percentages.
//
// Arguments:
// - body: The raw JSON payload.
//
// Returns:
// - []common.Candidate: The candidates, in payload order, with method delegate.
// - error: An error if the payload is not JSON or holds no item list.
//
// @example
// cands, err := Normalize([]byte(`{"foods":[{"name":"Rice","confidence":92}]}`))
// // cands[0].Name == "rice", cands[0].Confidence == 0.92
func Normalize(body []byte) ([]common.Candidate, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, ErrEmptyResponse
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("delegate: payload is not valid JSON")
	}

	root := gjson.ParseBytes(body)
	items := root
	if !root.IsArray() {
		found := false
		for _, key := range listKeys {
			if v := root.Get(key); v.IsArray() {
				items, found = v, true
				break
			}
		}
		if !found {
			return nil, errors.New("delegate: payload has no item list")
		}
	}

	out := make([]common.Candidate, 0)
	items.ForEach(func(_, item gjson.Result) bool {
		if c, ok := normalizeItem(item); ok {
			out = append(out, c)
		}
		return true
	})
	return out, nil
}

func normalizeItem(item gjson.Result) (common.Candidate, bool) {
	var c common.Candidate
	if item.Type == gjson.String {
		c.Name = NormalizeName(item.String())
		c.Confidence = DefaultConfidence
		c.Method = common.MethodDelegate
		return c, c.Name != ""
	}
	if !item.IsObject() {
		return c, false
	}

	name := firstOf(item, nameKeys)
	if name.Type == gjson.String {
		c.Name = NormalizeName(name.String())
	} else if name.IsObject() {
		// Rekognition-style {"Name": ...} wrappers.
		c.Name = NormalizeName(firstOf(name, []string{"name"}).String())
	}
	if c.Name == "" {
		return c, false
	}

	c.Confidence = DefaultConfidence
	if conf := firstOf(item, confidenceKeys); conf.Exists() {
		v := conf.Float()
		if v > 1 {
			v /= 100
		}
		c.Confidence = clamp01(v)
	}

	if portion := firstOf(item, portionKeys); portion.Exists() {
		switch {
		case portion.Type == gjson.String:
			c.PortionHint = strings.ToLower(strings.TrimSpace(portion.String()))
		case portion.IsObject():
			c.PortionHint = strings.ToLower(strings.TrimSpace(portion.Get("size").String()))
		}
	}

	if box := firstOf(item, bboxKeys); box.Exists() {
		c.BBox = parseBox(box)
	}

	c.Method = common.MethodDelegate
	return c, true
}

// firstOf returns the first key of keys present on obj, matched
// case-insensitively.
func firstOf(obj gjson.Result, keys []string) gjson.Result {
	for _, key := range keys {
		if v := obj.Get(key); v.Exists() {
			return v
		}
	}
	var found gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		for _, key := range keys {
			if strings.EqualFold(k.String(), key) {
				found = v
				return false
			}
		}
		return true
	})
	return found
}

// parseBox accepts [x1,y1,x2,y2], {x,y,width,height} or {x1,y1,x2,y2}.
func parseBox(v gjson.Result) *common.BoundingBox {
	switch {
	case v.IsArray():
		arr := v.Array()
		if len(arr) != 4 {
			return nil
		}
		return validBox(&common.BoundingBox{X1: arr[0].Float(), Y1: arr[1].Float(), X2: arr[2].Float(), Y2: arr[3].Float()})
	case v.IsObject():
		if v.Get("x1").Exists() {
			return validBox(&common.BoundingBox{
				X1: v.Get("x1").Float(), Y1: v.Get("y1").Float(),
				X2: v.Get("x2").Float(), Y2: v.Get("y2").Float(),
			})
		}
		x, y := firstOf(v, []string{"x", "left"}).Float(), firstOf(v, []string{"y", "top"}).Float()
		w, h := firstOf(v, []string{"width", "w"}).Float(), firstOf(v, []string{"height", "h"}).Float()
		return validBox(&common.BoundingBox{X1: x, Y1: y, X2: x + w, Y2: y + h})
	}
	return nil
}

func validBox(b *common.BoundingBox) *common.BoundingBox {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return nil
	}
	return b
}
