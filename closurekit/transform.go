package closurekit

// applyTransforms runs transforms over fn in order, stopping at the first
// error. A transform's own *Error is passed through unchanged so a
// transform author can report a more specific Kind than
// InvalidConfiguration when it knows one applies.
func applyTransforms(transforms []Transform, fn *FunctionAST, functionName, path string) error {
	for _, t := range transforms {
		if err := t(fn); err != nil {
			if ckErr, ok := err.(*Error); ok {
				return ckErr
			}
			return wrapf(ErrInvalidConfiguration, functionName, path, "transform: %v", err)
		}
	}
	return nil
}
