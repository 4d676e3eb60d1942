// Package assistant turns natural-language instructions into code with a
// remote language model, runs the code in the sandbox and grows the
// instruction/code dataset with the examples that work.
//
// All collaborators are passed explicitly in an Assistant value; the
// package keeps no global model or dataset state.
package assistant
