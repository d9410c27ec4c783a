/*
go-framewatch is a real time video frame analysis pipeline.  Frames from a
live source are handed through a drop oldest ingestion queue to an analysis
worker that runs inference, tracks objects across frames and renders an
annotated copy, which is handed through a second queue to an emitter that
always has a frame ready for the outbound stream.

Two analysers are provided, a security monitor in package security that
warns when tracked items go missing, and a workout assistant in package
workout that counts exercise repetitions from pose keypoints.

See example code and usage in the example subdirectory.
*/
package framewatch
