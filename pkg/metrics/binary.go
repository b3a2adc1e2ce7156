package metrics

// Confusion is a binary confusion matrix for one positive label.
type Confusion struct {
	TP int `json:"tp" yaml:"tp"`
	FP int `json:"fp" yaml:"fp"`
	FN int `json:"fn" yaml:"fn"`
	TN int `json:"tn" yaml:"tn"`
}

// BinaryScores counts paired values against positive. Extra values in the
// longer slice are ignored.
func BinaryScores(trueVals, predVals []string, positive string) Confusion {
	var c Confusion

	for i := 0; i < min(len(trueVals), len(predVals)); i++ {
		actual := trueVals[i] == positive
		predicted := predVals[i] == positive

		switch {
		case actual && predicted:
			c.TP++
		case predicted:
			c.FP++
		case actual:
			c.FN++
		default:
			c.TN++
		}
	}

	return c
}

// Precision is TP / (TP + FP), or 0 without positive predictions.
func (c Confusion) Precision() float64 {
	return safeDiv(c.TP, c.TP+c.FP)
}

// Recall is TP / (TP + FN), or 0 without actual positives.
func (c Confusion) Recall() float64 {
	return safeDiv(c.TP, c.TP+c.FN)
}

// F1 is the harmonic mean of precision and recall, or 0 when both are 0.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func safeDiv(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
