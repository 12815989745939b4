package gen

import (
	"github.com/syssam/cppgen/compiler/plan"
)

type baseConstant struct {
	Name  string
	Value int
}

// descriptorSetData is the input of the descriptor set skeletons.
type descriptorSetData struct {
	fileData
	Descriptor string
	Bases      []baseConstant
	Total      int
	// Messages are the qualified classes in slot order.
	Messages []string
}

func newDescriptorSetData(cfg *Config, l *Layout) *descriptorSetData {
	d := &descriptorSetData{
		fileData: fileData{
			Header:    cfg.Header,
			Namespace: descriptorNamespace,
		},
		Descriptor: messageDescriptor,
		Total:      l.Total(),
	}
	for _, p := range l.Packages() {
		d.Bases = append(d.Bases, baseConstant{Name: BaseConstant(p.Name), Value: l.Base(p.Name)})
		for _, id := range l.Order(p.Name) {
			d.Messages = append(d.Messages, plan.QualifiedClass(p, p.Message(id)))
		}
	}
	return d
}

// DescriptorSetHeaderFile renders the header of the descriptor set: the
// slot base of every package and the DescriptorSet class.
func DescriptorSetHeaderFile(cfg *Config, l *Layout) ([]byte, error) {
	d := newDescriptorSetData(cfg, l)
	d.Guard = guard(DescriptorSetHeader)
	d.Local = []string{runtimeInclude}
	return execute("descriptor_set_h", d)
}

// DescriptorSetSourceFile renders the implementation of the descriptor
// set. Construct builds every message descriptor of the build.
func DescriptorSetSourceFile(cfg *Config, l *Layout) ([]byte, error) {
	d := newDescriptorSetData(cfg, l)
	d.Local = []string{DescriptorSetHeader}
	for _, p := range l.Packages() {
		d.Local = append(d.Local, includePath(p))
	}
	return execute("descriptor_set_cc", d)
}
