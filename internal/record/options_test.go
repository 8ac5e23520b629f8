package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validOptions() Options {
	return Options{
		OutputPath: "/tmp/out.mp4",
		BitRate:    4_000_000,
		TimeLimit:  180,
	}
}

func TestOptionsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
		ok     bool
	}{
		{"defaults", func(*Options) {}, true},
		{"minimum bit rate", func(o *Options) { o.BitRate = 100_000 }, true},
		{"maximum bit rate", func(o *Options) { o.BitRate = 100_000_000 }, true},
		{"bit rate too low", func(o *Options) { o.BitRate = 99_999 }, false},
		{"bit rate too high", func(o *Options) { o.BitRate = 100_000_001 }, false},
		{"minimum time limit", func(o *Options) { o.TimeLimit = 1 }, true},
		{"zero time limit", func(o *Options) { o.TimeLimit = 0 }, false},
		{"time limit too high", func(o *Options) { o.TimeLimit = 181 }, false},
		{"empty output", func(o *Options) { o.OutputPath = "" }, false},
		{"explicit size", func(o *Options) {
			o.Width, o.Height, o.SizeSpecified = 1920, 1080, true
		}, true},
		{"explicit zero size", func(o *Options) {
			o.Width, o.Height, o.SizeSpecified = 0, 1080, true
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := validOptions()
			tc.mutate(&o)
			err := o.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
