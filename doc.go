/*
go-falldetect is a real-time visual detection pipeline for embedded boards
fitted with a neural accelerator.  It converts camera frames into object
detections (bounding boxes, classes, scores) using a YOLOv8 style model and
can derive a debounced fall/no-fall alarm from pose keypoints.

The detection pipeline is backend agnostic, inference runs either on the
Rockchip NPU via the RKNN Toolkit2 runtime or on the CPU via ONNX Runtime
for development on a PC.  The backend is selected by model file extension.

See example usage in the cmd/falldetect demo program.
*/
package falldetect
