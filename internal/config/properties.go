package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/magiconair/properties"
	"github.com/spf13/viper"
)

// propertiesCodec reads and writes Java-style .properties files. Dotted
// keys such as db.url become nested maps so they line up with the other
// formats.
type propertiesCodec struct{}

func (propertiesCodec) Decode(b []byte, v map[string]any) error {
	p := properties.NewProperties()
	p.DisableExpansion = true
	if err := p.Load(b, properties.UTF8); err != nil {
		return err
	}

	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		path := strings.Split(key, ".")
		m := v
		for _, part := range path[:len(path)-1] {
			next, ok := m[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				m[part] = next
			}
			m = next
		}
		m[path[len(path)-1]] = value
	}
	return nil
}

func (propertiesCodec) Encode(v map[string]any) ([]byte, error) {
	flat := map[string]string{}
	flattenInto(flat, "", v)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := properties.NewProperties()
	p.DisableExpansion = true
	for _, k := range keys {
		if _, _, err := p.Set(k, flat[k]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func flattenInto(dst map[string]string, prefix string, m map[string]any) {
	for k, val := range m {
		if nested, ok := val.(map[string]any); ok {
			flattenInto(dst, prefix+k+".", nested)
			continue
		}
		dst[prefix+k] = fmt.Sprint(val)
	}
}

// newViper returns a viper instance that understands .properties files in
// addition to viper's built-in formats.
func newViper() *viper.Viper {
	codecs := viper.NewCodecRegistry()
	for _, ext := range []string{"properties", "props", "prop"} {
		_ = codecs.RegisterCodec(ext, propertiesCodec{})
	}
	return viper.NewWithOptions(viper.WithCodecRegistry(codecs))
}
