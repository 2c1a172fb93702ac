package irformat

import (
	"github.com/iancoleman/strcase"

	"kefir/internal/ir"
)

// comparisonOps pairs every ComparisonOperation constant with its bare
// Go identifier suffix; the wire name is derived from that suffix with
// strcase. Opcode names do not go through strcase: they are the literal
// snake_case strings of the opcode table in package ir.
var comparisonOps = []struct {
	Op     ir.ComparisonOperation
	Suffix string
}{
	{ir.CmpInt8Equal, "Int8Equal"}, {ir.CmpInt16Equal, "Int16Equal"},
	{ir.CmpInt32Equal, "Int32Equal"}, {ir.CmpInt64Equal, "Int64Equal"},
	{ir.CmpInt8NotEqual, "Int8NotEqual"}, {ir.CmpInt16NotEqual, "Int16NotEqual"},
	{ir.CmpInt32NotEqual, "Int32NotEqual"}, {ir.CmpInt64NotEqual, "Int64NotEqual"},
	{ir.CmpInt8Greater, "Int8Greater"}, {ir.CmpInt16Greater, "Int16Greater"},
	{ir.CmpInt32Greater, "Int32Greater"}, {ir.CmpInt64Greater, "Int64Greater"},
	{ir.CmpInt8GreaterOrEqual, "Int8GreaterOrEqual"}, {ir.CmpInt16GreaterOrEqual, "Int16GreaterOrEqual"},
	{ir.CmpInt32GreaterOrEqual, "Int32GreaterOrEqual"}, {ir.CmpInt64GreaterOrEqual, "Int64GreaterOrEqual"},
	{ir.CmpInt8Lesser, "Int8Lesser"}, {ir.CmpInt16Lesser, "Int16Lesser"},
	{ir.CmpInt32Lesser, "Int32Lesser"}, {ir.CmpInt64Lesser, "Int64Lesser"},
	{ir.CmpInt8LesserOrEqual, "Int8LesserOrEqual"}, {ir.CmpInt16LesserOrEqual, "Int16LesserOrEqual"},
	{ir.CmpInt32LesserOrEqual, "Int32LesserOrEqual"}, {ir.CmpInt64LesserOrEqual, "Int64LesserOrEqual"},
	{ir.CmpInt8Above, "Int8Above"}, {ir.CmpInt16Above, "Int16Above"},
	{ir.CmpInt32Above, "Int32Above"}, {ir.CmpInt64Above, "Int64Above"},
	{ir.CmpInt8AboveOrEqual, "Int8AboveOrEqual"}, {ir.CmpInt16AboveOrEqual, "Int16AboveOrEqual"},
	{ir.CmpInt32AboveOrEqual, "Int32AboveOrEqual"}, {ir.CmpInt64AboveOrEqual, "Int64AboveOrEqual"},
	{ir.CmpInt8Below, "Int8Below"}, {ir.CmpInt16Below, "Int16Below"},
	{ir.CmpInt32Below, "Int32Below"}, {ir.CmpInt64Below, "Int64Below"},
	{ir.CmpInt8BelowOrEqual, "Int8BelowOrEqual"}, {ir.CmpInt16BelowOrEqual, "Int16BelowOrEqual"},
	{ir.CmpInt32BelowOrEqual, "Int32BelowOrEqual"}, {ir.CmpInt64BelowOrEqual, "Int64BelowOrEqual"},
	{ir.CmpFloat32Equal, "Float32Equal"}, {ir.CmpFloat32NotEqual, "Float32NotEqual"},
	{ir.CmpFloat32Greater, "Float32Greater"}, {ir.CmpFloat32GreaterOrEqual, "Float32GreaterOrEqual"},
	{ir.CmpFloat32Lesser, "Float32Lesser"}, {ir.CmpFloat32LesserOrEqual, "Float32LesserOrEqual"},
	{ir.CmpFloat32NotGreater, "Float32NotGreater"}, {ir.CmpFloat32NotGreaterOrEqual, "Float32NotGreaterOrEqual"},
	{ir.CmpFloat32NotLesser, "Float32NotLesser"}, {ir.CmpFloat32NotLesserOrEqual, "Float32NotLesserOrEqual"},
	{ir.CmpFloat64Equal, "Float64Equal"}, {ir.CmpFloat64NotEqual, "Float64NotEqual"},
	{ir.CmpFloat64Greater, "Float64Greater"}, {ir.CmpFloat64GreaterOrEqual, "Float64GreaterOrEqual"},
	{ir.CmpFloat64Lesser, "Float64Lesser"}, {ir.CmpFloat64LesserOrEqual, "Float64LesserOrEqual"},
	{ir.CmpFloat64NotGreater, "Float64NotGreater"}, {ir.CmpFloat64NotGreaterOrEqual, "Float64NotGreaterOrEqual"},
	{ir.CmpFloat64NotLesser, "Float64NotLesser"}, {ir.CmpFloat64NotLesserOrEqual, "Float64NotLesserOrEqual"},
}

var comparisonToName map[ir.ComparisonOperation]string
var nameToComparison map[string]ir.ComparisonOperation

var branchVariantOps = []struct {
	Variant ir.BranchConditionVariant
	Suffix  string
}{
	{ir.BranchCondition8Bit, "Condition8Bit"}, {ir.BranchConditionNegated8Bit, "ConditionNegated8Bit"},
	{ir.BranchCondition16Bit, "Condition16Bit"}, {ir.BranchConditionNegated16Bit, "ConditionNegated16Bit"},
	{ir.BranchCondition32Bit, "Condition32Bit"}, {ir.BranchConditionNegated32Bit, "ConditionNegated32Bit"},
	{ir.BranchCondition64Bit, "Condition64Bit"}, {ir.BranchConditionNegated64Bit, "ConditionNegated64Bit"},
}

var branchVariantToName map[ir.BranchConditionVariant]string
var nameToBranchVariant map[string]ir.BranchConditionVariant

var loadExtensionOps = []struct {
	Ext    ir.MemoryLoadExtension
	Suffix string
}{
	{ir.LoadNoExtend, "NoExtend"}, {ir.LoadSignExtend, "SignExtend"}, {ir.LoadZeroExtend, "ZeroExtend"},
}

var loadExtensionToName map[ir.MemoryLoadExtension]string
var nameToLoadExtension map[string]ir.MemoryLoadExtension

func init() {
	comparisonToName = make(map[ir.ComparisonOperation]string, len(comparisonOps))
	nameToComparison = make(map[string]ir.ComparisonOperation, len(comparisonOps))
	for _, e := range comparisonOps {
		name := strcase.ToSnake(e.Suffix)
		comparisonToName[e.Op] = name
		nameToComparison[name] = e.Op
	}

	branchVariantToName = make(map[ir.BranchConditionVariant]string, len(branchVariantOps))
	nameToBranchVariant = make(map[string]ir.BranchConditionVariant, len(branchVariantOps))
	for _, e := range branchVariantOps {
		name := strcase.ToSnake(e.Suffix)
		branchVariantToName[e.Variant] = name
		nameToBranchVariant[name] = e.Variant
	}

	loadExtensionToName = make(map[ir.MemoryLoadExtension]string, len(loadExtensionOps))
	nameToLoadExtension = make(map[string]ir.MemoryLoadExtension, len(loadExtensionOps))
	for _, e := range loadExtensionOps {
		name := strcase.ToSnake(e.Suffix)
		loadExtensionToName[e.Ext] = name
		nameToLoadExtension[name] = e.Ext
	}
}

const atomicOrderSeqCst = "seq_cst"
