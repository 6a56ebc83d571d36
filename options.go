package flatmsg

import "golang.org/x/text/encoding"

// Option configures a Decoder, Encoder or one of the untyped entry points.
type Option func(*options)

type options struct {
	charset  encoding.Encoding
	resolver *Resolver
	err      error
}

// WithCharset sets the charset of KindLocalString fields (and of KindAlphaNumeric output).
func WithCharset(cs encoding.Encoding) Option {
	return func(o *options) {
		if cs != nil {
			o.charset = cs
		}
	}
}

// WithCharsetName is WithCharset with the charset looked up by name, e.g. "euc-kr".
// An unknown name makes the constructor fail.
func WithCharsetName(name string) Option {
	return func(o *options) {
		cs, err := LookupCharset(name)
		if err != nil {
			o.err = err
			return
		}
		o.charset = cs
	}
}

// WithResolver resolves schemas through r instead of the package default.
func WithResolver(r *Resolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithProvider resolves schemas from p with a resolver of its own. Use WithResolver
// with a shared NewResolver(p) to share the schema cache between several codecs.
func WithProvider(p Provider) Option {
	return func(o *options) {
		o.resolver = NewResolver(p)
	}
}

func newOptions(opts []Option) (options, error) {
	o := options{charset: DefaultCharset, resolver: defaultResolver}
	for _, opt := range opts {
		opt(&o)
	}
	return o, o.err
}
